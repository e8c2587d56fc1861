package timeline

// Palette is the fixed set of theme colors. Themes map onto it
// deterministically by name so a theme keeps its color across sessions.
var Palette = []string{
	"#60A5FA",
	"#34D399",
	"#F59E0B",
	"#F97316",
	"#A78BFA",
	"#F472B6",
	"#FCA5A5",
	"#60A5FA",
	"#7DD3FC",
	"#34D399",
}

// ColorForTheme returns the palette color for a theme name.
func ColorForTheme(name string) string {
	if name == "" {
		return Palette[0]
	}
	s := 0
	for i, r := range []rune(name) {
		s += int(r) * (i + 1)
	}
	if s < 0 {
		s = -s
	}
	return Palette[s%len(Palette)]
}
