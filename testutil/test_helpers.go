package testutil

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

func AssertNotEqual(t testing.TB, expected, actual any, msgAndArgs ...any) {
	t.Helper()

	if reflect.DeepEqual(expected, actual) {
		t.Errorf(
			"Expected objects to be not equal, but they were:\nExpected: %v\nActual  : %v%s",
			expected,
			actual,
			formatMessage(msgAndArgs...),
		)
	}
}

// AssertLessOrEqual checks a <= b for any ordered type.
func AssertLessOrEqual[T cmp.Ordered](t testing.TB, a, b T, msgAndArgs ...any) {
	t.Helper()
	if a > b {
		t.Errorf("Expected %v <= %v\n%s", a, b, FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertTrue(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if !condition {
		t.Errorf("Expected condition to be true\n%s", FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertFalse(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if condition {
		t.Errorf("Expected condition to be false\n%s", FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertEqual(t testing.TB, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf(
			"Not equal: \nexpected: %v\nactual  : %v\n%s",
			expected,
			actual,
			FormatMsgAndArgs(msgAndArgs...),
		)
	}
}

func AssertNoError(t testing.TB, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		t.Errorf("Unexpected error: %v\n%s", err, FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertError(t testing.TB, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected an error but got nil\n%s", FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertErrorIs(t testing.TB, err, target error, msgAndArgs ...any) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf(
			"Expected error to be %v but got %v\n%s",
			target,
			err,
			FormatMsgAndArgs(msgAndArgs...),
		)
	}
}

func AssertLen(t testing.TB, object any, length int, msgAndArgs ...any) {
	t.Helper()
	v := reflect.ValueOf(object)
	if v.Len() != length {
		t.Errorf(
			"Length not equal: \nexpected: %d\nactual  : %d\n%s",
			length,
			v.Len(),
			FormatMsgAndArgs(msgAndArgs...),
		)
	}
}

func AssertEmpty(t testing.TB, object any, msgAndArgs ...any) {
	t.Helper()
	v := reflect.ValueOf(object)
	if v.Len() != 0 {
		t.Errorf("Expected empty but got length %d\n%s", v.Len(), FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertNil(t *testing.T, actual any, msgAndArgs ...any) {
	t.Helper()
	if !isNil(actual) {
		t.Fatalf("%s: Expected value to be nil, but was: %#v%s", getCallerInfo(), actual, formatMessage(msgAndArgs...))
	}
}

func formatMessage(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 || msgAndArgs[0] == nil {
		return ""
	}
	if len(msgAndArgs) == 1 {
		if msgStr, ok := msgAndArgs[0].(string); ok {
			return ": " + msgStr
		}
		return fmt.Sprintf(": %v", msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return ": " + fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprintf(": %v", msgAndArgs)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	// A nil pointer stored in an interface counts as nil.
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

func getCallerInfo() string {
	// Skip this function and the assertion that called it.
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return ""
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	} else if len(parts) > 0 {
		file = parts[len(parts)-1]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func AssertNotNil(t testing.TB, object any, msgAndArgs ...any) {
	t.Helper()
	if object == nil {
		t.Errorf("Expected not nil but got nil\n%s", FormatMsgAndArgs(msgAndArgs...))
		return
	}

	v := reflect.ValueOf(object)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		t.Errorf("Expected not nil but got nil pointer\n%s", FormatMsgAndArgs(msgAndArgs...))
	}
}

// FormatMsgAndArgs renders the optional message of an assertion.
func FormatMsgAndArgs(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if len(msgAndArgs) == 1 {
		return fmt.Sprintf("\nMessage: %v", msgAndArgs[0])
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprintf("\nMessage: %v", msgAndArgs)
	}
	return fmt.Sprintf("\nMessage: %s", fmt.Sprintf(format, msgAndArgs[1:]...))
}

// RequireNoError stops the test when err is non-nil.
func RequireNoError(t testing.TB, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		t.Fatalf("Required no error but got: %v\n%s", err, FormatMsgAndArgs(msgAndArgs...))
	}
}

// RequireTrue stops the test when condition is false.
func RequireTrue(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if !condition {
		t.Fatalf("Required true but got false\n%s", FormatMsgAndArgs(msgAndArgs...))
	}
}

func RequireNotNil(t testing.TB, object any, msgAndArgs ...any) {
	t.Helper()
	if object == nil {
		t.Fatalf("Required not nil but got nil\n%s", FormatMsgAndArgs(msgAndArgs...))
		return
	}

	v := reflect.ValueOf(object)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		t.Fatalf("Required not nil but got nil pointer\n%s", FormatMsgAndArgs(msgAndArgs...))
	}
}

func AssertContains(t testing.TB, s, substr string, msgAndArgs ...any) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf(
			"Expected string to contain substring:\nstring: %q\nsubstring: %q\n%s",
			s,
			substr,
			FormatMsgAndArgs(msgAndArgs...),
		)
	}
}

// Eventually polls cond every interval until it returns true or timeout
// elapses, failing the test in the latter case.
func Eventually(t testing.TB, timeout, interval time.Duration, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v\n%s", timeout, FormatMsgAndArgs(msgAndArgs...))
			return
		}
		time.Sleep(interval)
	}
}
