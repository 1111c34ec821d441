// Package template renders sequence step subjects and bodies with the
// Liquid template language for subscriber personalization.
package template

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// Service handles Liquid template rendering with caching.
type Service struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewService creates a template service with the custom filters registered.
func NewService() *Service {
	s := &Service{engine: liquid.NewEngine()}
	s.registerFilters()
	return s
}

func (s *Service) registerFilters() {
	// Default value filter: {{ first_name | default: "Friend" }}
	s.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	s.engine.RegisterFilter("capitalize", func(str string) string {
		if len(str) == 0 {
			return str
		}
		return strings.ToUpper(string(str[0])) + strings.ToLower(str[1:])
	})

	// Title case: {{ name | titlecase }}
	s.engine.RegisterFilter("titlecase", func(str string) string {
		return strings.Title(strings.ToLower(str))
	})

	// Truncate with ellipsis: {{ bio | truncate: 50 }}
	s.engine.RegisterFilter("truncate", func(str string, length int) string {
		if len(str) <= length {
			return str
		}
		if length <= 3 {
			return str[:length]
		}
		return str[:length-3] + "..."
	})
}

// Render processes a template string against the given context. Render is
// lax: on parse or render errors it logs and returns the original string,
// so a broken template degrades to an unpersonalized email instead of
// failing the step.
func (s *Service) Render(cacheKey, templateStr string, ctx map[string]interface{}) string {
	if cacheKey != "" {
		if cached, ok := s.cache.Load(cacheKey); ok {
			tpl := cached.(*liquid.Template)
			out, err := tpl.RenderString(ctx)
			if err != nil {
				logger.Warn("template: render error", "cache_key", cacheKey, "error", err)
				return templateStr
			}
			return out
		}
	}

	tpl, err := s.engine.ParseString(templateStr)
	if err != nil {
		logger.Warn("template: parse error", "cache_key", cacheKey, "error", err)
		return templateStr
	}
	if cacheKey != "" {
		s.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		logger.Warn("template: render error", "cache_key", cacheKey, "error", err)
		return templateStr
	}
	return out
}

// ClearCache drops all cached parsed templates. Called when a sequence
// step is edited.
func (s *Service) ClearCache() {
	s.cache.Range(func(key, _ interface{}) bool {
		s.cache.Delete(key)
		return true
	})
}

// SubscriberContext builds the render context for one subscriber.
// unsubBaseURL is the public unsubscribe page; the subscriber email is
// attached as a query parameter.
func SubscriberContext(sub *domain.Subscriber, unsubBaseURL string) map[string]interface{} {
	ctx := map[string]interface{}{
		"email":      sub.Email,
		"first_name": sub.FirstName,
		"source":     sub.Source,
	}
	if unsubBaseURL != "" {
		ctx["unsubscribe_url"] = unsubBaseURL + "?email=" + url.QueryEscape(sub.Email)
	}
	return ctx
}
