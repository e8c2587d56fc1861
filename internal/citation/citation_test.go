package citation

import (
	"testing"
)

type spy struct {
	targets []float64
	sources []string
}

func (s *spy) PublishSeek(seconds float64, source string) {
	s.targets = append(s.targets, seconds)
	s.sources = append(s.sources, source)
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(`{"1": 12.5, "2": "30", "3": [45, 50], "4": "soon", "5": null, "6": {"x": 1}}`))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	want := map[string]float64{"1": 12.5, "2": 30, "3": 45}
	if len(table) != len(want) {
		t.Errorf("table = %v, want %v", table, want)
	}
	for id, s := range want {
		if got, ok := table.Lookup(id); !ok || got != s {
			t.Errorf("Lookup(%q) = %v, %v, want %v", id, got, ok, s)
		}
	}
}

func TestParseTableRejectsNonObject(t *testing.T) {
	if _, err := ParseTable([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseTable([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for array")
	}
}

func TestMissingIDSeeksToZero(t *testing.T) {
	table := Table{"7": 70}
	s := &spy{}

	got := table.Seek(s, "42")

	if got != 0 {
		t.Errorf("Seek returned %v, want 0", got)
	}
	if len(s.targets) != 1 || s.targets[0] != 0 {
		t.Errorf("published = %v, want [0]", s.targets)
	}
	if s.sources[0] != Source {
		t.Errorf("source = %q, want %q", s.sources[0], Source)
	}
}

func TestKnownIDSeeks(t *testing.T) {
	s := &spy{}
	Table{"12": 83}.Seek(s, "12")
	if len(s.targets) != 1 || s.targets[0] != 83 {
		t.Errorf("published = %v, want [83]", s.targets)
	}
}

func TestTokens(t *testing.T) {
	text := "Users hesitate #id=3# and later #id=12#. Not #id=x#."
	toks := Tokens(text)
	if len(toks) != 2 {
		t.Fatalf("tokens = %+v", toks)
	}
	if toks[0].ID != "3" || text[toks[0].Start:toks[0].End] != "#id=3#" {
		t.Errorf("token 0 = %+v", toks[0])
	}
	if toks[1].ID != "12" {
		t.Errorf("token 1 = %+v", toks[1])
	}
}

func TestRender(t *testing.T) {
	table := Table{"3": 75, "12": 3725}
	out, links := table.Render("See #id=3#, #id=12# and #id=99#.")

	want := "See [1:15], [1:02:05] and [id:99]."
	if out != want {
		t.Errorf("Render = %q, want %q", out, want)
	}
	if len(links) != 3 {
		t.Fatalf("links = %+v", links)
	}
	if !links[0].Known || links[0].Seconds != 75 {
		t.Errorf("links[0] = %+v", links[0])
	}
	if links[2].Known || links[2].Label != "id:99" {
		t.Errorf("links[2] = %+v", links[2])
	}

	plain := "nothing to cite"
	if out, links := table.Render(plain); out != plain || links != nil {
		t.Errorf("Render(plain) = %q, %v", out, links)
	}
}
