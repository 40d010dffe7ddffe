package discovery

import (
	"context"
	"testing"

	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(nil)

	testutil.RequireNoError(t, r.Register(ctx, 2, "host:2002"))
	testutil.RequireNoError(t, r.Register(ctx, 0, "host:2000"))
	testutil.RequireNoError(t, r.Register(ctx, 1, "host:2001"))

	ids, err := r.List(ctx)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, []types.NodeID{0, 1, 2}, ids)

	addr, ok, err := r.Lookup(ctx, 1)
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, ok)
	testutil.AssertEqual(t, "host:2001", addr)

	testutil.RequireNoError(t, r.Register(ctx, 1, "other:2001"))
	addr, _, _ = r.Lookup(ctx, 1)
	testutil.AssertEqual(t, "other:2001", addr, "register replaces the binding")

	testutil.RequireNoError(t, r.Unregister(ctx, 1))
	testutil.RequireNoError(t, r.Unregister(ctx, 1), "unregistering twice is fine")

	registered, err := r.IsRegistered(ctx, 1)
	testutil.RequireNoError(t, err)
	testutil.AssertFalse(t, registered)

	_, ok, err = r.Lookup(ctx, 1)
	testutil.RequireNoError(t, err)
	testutil.AssertFalse(t, ok)

	registered, _ = r.IsRegistered(ctx, 2)
	testutil.AssertTrue(t, registered)
}

func TestMemoryRegistry_Validation(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(nil)

	testutil.AssertErrorIs(t, r.Register(ctx, -1, "host:1"), ErrInvalidNodeID)
	testutil.AssertErrorIs(t, r.Register(ctx, 1, ""), ErrInvalidAddress)

	ids, err := r.List(ctx)
	testutil.RequireNoError(t, err)
	testutil.AssertEmpty(t, ids)
}
