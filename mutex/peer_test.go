package mutex

import (
	"testing"

	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

func TestNewPeerList(t *testing.T) {
	a := newFakePeer(4, nil, true)
	b := newFakePeer(1, nil, true)
	dup := newFakePeer(4, nil, false)

	list := NewPeerList(2, []Peer{
		{ID: 4, Channel: a},
		{ID: 2, Channel: newFakePeer(2, nil, true)},
		{ID: 1, Channel: b},
		{ID: 7, Channel: nil},
		{ID: 4, Channel: dup},
	})

	testutil.AssertEqual(t, 2, list.Len())
	testutil.AssertEqual(t, []types.NodeID{1, 4}, list.IDs())

	ch, ok := list.Lookup(4)
	testutil.AssertTrue(t, ok)
	testutil.AssertTrue(t, ch == PeerChannel(a), "first entry for a duplicate id wins")

	_, ok = list.Lookup(2)
	testutil.AssertFalse(t, ok, "self is never a peer")
	_, ok = list.Lookup(7)
	testutil.AssertFalse(t, ok, "nil channels are dropped")
}

func TestPeerList_AllIsACopy(t *testing.T) {
	list := NewPeerList(0, []Peer{{ID: 1, Channel: newFakePeer(1, nil, true)}})
	all := list.All()
	all[0].ID = 99

	testutil.AssertEqual(t, []types.NodeID{1}, list.IDs())
}

func TestPeerList_Empty(t *testing.T) {
	var list PeerList
	testutil.AssertEqual(t, 0, list.Len())
	testutil.AssertEmpty(t, list.IDs())
	_, ok := list.Lookup(1)
	testutil.AssertFalse(t, ok)
}

func TestPeerList_SameMembers(t *testing.T) {
	x := NewPeerList(0, []Peer{{ID: 1, Channel: newFakePeer(1, nil, true)}, {ID: 2, Channel: newFakePeer(2, nil, true)}})
	y := NewPeerList(0, []Peer{{ID: 2, Channel: newFakePeer(2, nil, false)}, {ID: 1, Channel: newFakePeer(1, nil, false)}})
	z := NewPeerList(0, []Peer{{ID: 1, Channel: newFakePeer(1, nil, true)}})

	testutil.AssertTrue(t, x.sameMembers(y))
	testutil.AssertFalse(t, x.sameMembers(z))
}
