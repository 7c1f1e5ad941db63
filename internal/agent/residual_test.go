package agent

import "testing"

func TestHasSearchTerms(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"find information about quantum computing on wikipedia", true},
		{"search golang generics", true},
		{"look for cheap flights", true},
		{"more about black holes", true},
		{"open github.com", false},
		{"visit reddit", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := HasSearchTerms(tt.query); got != tt.want {
				t.Errorf("HasSearchTerms(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestResidualTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "command and site words stripped",
			query: "find information about quantum computing on wikipedia",
			want:  "quantum computing",
		},
		{
			name:  "bare domains dropped",
			query: "open example.com and read pricing",
			want:  "pricing",
		},
		{
			name:  "single letters dropped",
			query: "search for a b golang channels",
			want:  "golang channels",
		},
		{
			name:  "punctuation trimmed",
			query: "find 'rust lifetimes', please.",
			want:  "rust lifetimes please",
		},
		{
			name:  "kept tokens retain their casing",
			query: "visit wikipedia and find about Alan Turing",
			want:  "Alan Turing",
		},
		{
			name:  "uppercase command words still stripped",
			query: "Find NATS JetStream docs",
			want:  "NATS JetStream docs",
		},
		{
			name:  "pure navigation leaves nothing",
			query: "go to github",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResidualTerms(tt.query); got != tt.want {
				t.Errorf("ResidualTerms(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
