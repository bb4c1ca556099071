package roster

import (
	"errors"
	"reflect"
	"testing"
)

func TestAddName(t *testing.T) {
	got := AddName(AddName(nil, "Ana"), "Ana")
	if !reflect.DeepEqual(got, Roster{"Ana"}) {
		t.Fatalf("got %v", got)
	}

	cases := []struct {
		name string
		in   Roster
		add  string
		want Roster
		err  error
	}{
		{"append trimmed", Roster{"Ana"}, "  Bia ", Roster{"Ana", "Bia"}, nil},
		{"blank", Roster{"Ana"}, "   ", Roster{"Ana"}, ErrBlankName},
		{"duplicate after trim", Roster{"Ana"}, " Ana", Roster{"Ana"}, ErrDuplicateName},
		{"case sensitive", Roster{"Ana"}, "ana", Roster{"Ana", "ana"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateName(tc.in, tc.add); !errors.Is(err, tc.err) {
				t.Fatalf("ValidateName err = %v, want %v", err, tc.err)
			}
			if got := AddName(tc.in, tc.add); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("AddName = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAddNameDoesNotAlias(t *testing.T) {
	in := make(Roster, 1, 4)
	in[0] = "Ana"
	out := AddName(in, "Bia")
	out[0] = "Changed"
	if in[0] != "Ana" {
		t.Fatal("AddName aliased its input")
	}
}

func TestRemoveName(t *testing.T) {
	in := Roster{"A", "B"}
	got, err := RemoveName(in, 5)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v", err)
	}
	var ie *IndexError
	if !errors.As(err, &ie) || ie.Index != 5 || ie.Len != 2 {
		t.Fatalf("IndexError = %+v", ie)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("roster changed on error: %v", got)
	}
	if _, err := RemoveName(in, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("negative index err = %v", err)
	}

	got, err = RemoveName(Roster{"A", "B", "C"}, 1)
	if err != nil || !reflect.DeepEqual(got, Roster{"A", "C"}) {
		t.Fatalf("got %v, %v", got, err)
	}
	if !reflect.DeepEqual(in, Roster{"A", "B"}) {
		t.Fatal("input mutated")
	}
}

func TestEditName(t *testing.T) {
	in := Roster{"Ana", "Bia"}
	cases := []struct {
		name  string
		index int
		to    string
		want  Roster
		err   error
	}{
		{"rename", 1, " Bea ", Roster{"Ana", "Bea"}, nil},
		{"same name", 0, "Ana", Roster{"Ana", "Bia"}, nil},
		{"duplicate of other", 0, "Bia", in, ErrDuplicateName},
		{"blank", 0, "", in, ErrBlankName},
		{"out of range", 2, "Caio", in, ErrIndexOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EditName(in, tc.index, tc.to)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMoveName(t *testing.T) {
	in := Roster{"A", "B", "C", "D"}
	cases := []struct {
		from, to int
		want     Roster
	}{
		{0, 2, Roster{"B", "C", "A", "D"}},
		{3, 0, Roster{"D", "A", "B", "C"}},
		{1, 1, Roster{"A", "B", "C", "D"}},
	}
	for _, tc := range cases {
		got, err := MoveName(in, tc.from, tc.to)
		if err != nil || !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("MoveName(%d,%d) = %v, %v", tc.from, tc.to, got, err)
		}
	}
	if _, err := MoveName(in, 0, 4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(in, Roster{"A", "B", "C", "D"}) {
		t.Fatal("input mutated")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" Ana ", "", "Bia", "Ana", "  "})
	if !reflect.DeepEqual(got, Roster{"Ana", "Bia"}) {
		t.Fatalf("got %v", got)
	}
}
