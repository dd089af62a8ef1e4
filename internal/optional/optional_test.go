package optional

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValue(t *testing.T) {

	// Verify that None creates a Value with an indirect == nil
	t.Run("None works as intended", func(t *testing.T) {
		v := None[int64]()
		if v.indirect != nil {
			t.Fatal("should be nil")
		}
	})

	t.Run("Some works as intended", func(t *testing.T) {
		t.Run("for zero nonpointer value", func(t *testing.T) {
			v := Some(int64(0))
			if v.indirect == nil || *v.indirect != 0 {
				t.Fatal("unexpected indirect")
			}
		})

		// Verify that Some(nil) creates an empty value when wrapping a pointer
		t.Run("for nil pointer value", func(t *testing.T) {
			var underlying *int
			v := Some(underlying)
			if v.indirect != nil {
				t.Fatal("unexpected indirect", *v.indirect)
			}
		})
	})

	t.Run("JSON round trip", func(t *testing.T) {
		type config struct {
			Length Value[int64]
		}

		t.Run("with a value", func(t *testing.T) {
			var state config
			if err := json.Unmarshal([]byte(`{"Length":35}`), &state); err != nil {
				t.Fatal(err)
			}
			if state.Length.Unwrap() != 35 {
				t.Fatal("unexpected value")
			}
			data, err := json.Marshal(state)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(`{"Length":35}`, string(data)); diff != "" {
				t.Fatal(diff)
			}
		})

		t.Run("with null", func(t *testing.T) {
			state := config{Length: Some(int64(10))}
			if err := json.Unmarshal([]byte(`{"Length":null}`), &state); err != nil {
				t.Fatal(err)
			}
			if !state.Length.IsNone() {
				t.Fatal("expected none")
			}
		})

		t.Run("with incompatible input", func(t *testing.T) {
			var state config
			if err := json.Unmarshal([]byte(`{"Length":"antani"}`), &state); err == nil {
				t.Fatal("expected an error")
			}
		})
	})

	t.Run("Unwrap panics for an empty Value", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected a panic")
			}
		}()
		None[int64]().Unwrap()
	})

	t.Run("UnwrapOr works as intended", func(t *testing.T) {
		if v := None[int64]().UnwrapOr(555); v != 555 {
			t.Fatal("unexpected value", v)
		}
		if v := Some(int64(12345)).UnwrapOr(555); v != 12345 {
			t.Fatal("unexpected value", v)
		}
	})
}
