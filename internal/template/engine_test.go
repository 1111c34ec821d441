package template

import (
	"strings"
	"testing"

	"github.com/stillpoint/drip/internal/domain"
)

func TestRenderSubstitution(t *testing.T) {
	svc := NewService()

	out := svc.Render("", "Hello {{ first_name | default: \"Friend\" }}!", map[string]interface{}{
		"first_name": "dana",
	})
	if out != "Hello dana!" {
		t.Errorf("Render = %q, want %q", out, "Hello dana!")
	}
}

func TestRenderDefaultFilter(t *testing.T) {
	svc := NewService()

	tests := []struct {
		name string
		ctx  map[string]interface{}
		want string
	}{
		{"missing variable", map[string]interface{}{}, "Hello Friend!"},
		{"empty variable", map[string]interface{}{"first_name": ""}, "Hello Friend!"},
		{"present variable", map[string]interface{}{"first_name": "Sam"}, "Hello Sam!"},
	}

	tpl := `Hello {{ first_name | default: "Friend" }}!`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.Render("", tpl, tt.ctx); got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderLaxOnBadTemplate(t *testing.T) {
	svc := NewService()

	bad := "Hello {{ unclosed"
	if got := svc.Render("", bad, nil); got != bad {
		t.Errorf("Render on bad template = %q, want original", got)
	}
}

func TestRenderCaching(t *testing.T) {
	svc := NewService()

	tpl := "Hi {{ first_name }}"
	first := svc.Render("step:1", tpl, map[string]interface{}{"first_name": "A"})
	second := svc.Render("step:1", tpl, map[string]interface{}{"first_name": "B"})
	if first != "Hi A" || second != "Hi B" {
		t.Errorf("cached render mismatch: %q / %q", first, second)
	}

	svc.ClearCache()
	third := svc.Render("step:1", "Bye {{ first_name }}", map[string]interface{}{"first_name": "C"})
	if third != "Bye C" {
		t.Errorf("render after ClearCache = %q, want %q", third, "Bye C")
	}
}

func TestSubscriberContext(t *testing.T) {
	sub := &domain.Subscriber{
		Email:     "a+b@x.com",
		FirstName: "Ada",
		Source:    "newsletter_signup",
	}

	ctx := SubscriberContext(sub, "https://stillpoint.example/unsubscribe")
	if ctx["email"] != "a+b@x.com" || ctx["first_name"] != "Ada" {
		t.Errorf("unexpected context: %+v", ctx)
	}
	unsub, _ := ctx["unsubscribe_url"].(string)
	if !strings.HasPrefix(unsub, "https://stillpoint.example/unsubscribe?email=") {
		t.Errorf("unsubscribe_url = %q", unsub)
	}
	if strings.Contains(unsub, "a+b@") {
		t.Errorf("email not query-escaped: %q", unsub)
	}
}
