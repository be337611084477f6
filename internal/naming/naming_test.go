package naming_test

import (
	"testing"

	"github.com/mickamy/crudmodel/internal/naming"
)

func TestCamelToSnake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"ID", "id"},
		{"Name", "name"},
		{"CreatedAt", "created_at"},
		{"AuthorID", "author_id"},
		{"HTTPServer", "http_server"},
		{"bookTitle", "book_title"},
		{"A", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := naming.CamelToSnake(tt.input)
			if got != tt.want {
				t.Errorf("CamelToSnake(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPluralTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"User", "users"},
		{"BlogPost", "blog_posts"},
		{"Category", "categories"},
		{"Person", "people"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := naming.PluralTable(tt.input); got != tt.want {
				t.Errorf("PluralTable(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLowerTable(t *testing.T) {
	t.Parallel()

	if got := naming.LowerTable("BlogPost"); got != "blogpost" {
		t.Errorf("LowerTable = %q, want %q", got, "blogpost")
	}
}
