package workloads

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
)

// DefaultLocaleIdentifier is used when the environment names no usable locale.
const DefaultLocaleIdentifier = "en_US"

// Locale is a BCP 47 language tag with POSIX-style identifiers.
type Locale struct {
	tag language.Tag
}

// NewLocale parses an identifier such as "en_US" or "zh-Hant-TW".
func NewLocale(identifier string) (Locale, error) {
	tag, err := language.Parse(strings.ReplaceAll(identifier, "_", "-"))
	if err != nil {
		return Locale{}, errors.Wrapf(err, "invalid locale identifier %q", identifier)
	}
	return Locale{tag: tag}, nil
}

// Tag returns the underlying language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

// Identifier returns the identifier with underscores between subtags, e.g. "en_US".
func (l Locale) Identifier() string {
	return strings.ReplaceAll(l.tag.String(), "-", "_")
}

var processLocale = sync.OnceValue(localeFromEnv)

// CurrentLocale returns the process locale, read from the environment once.
func CurrentLocale() Locale {
	return processLocale()
}

// AutoupdatingCurrentLocale reads the process locale from the environment on
// every call.
func AutoupdatingCurrentLocale() Locale {
	return localeFromEnv()
}

// localeFromEnv follows the POSIX precedence LC_ALL, LC_MESSAGES, LANG.
func localeFromEnv() Locale {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if i := strings.IndexAny(value, ".@"); i >= 0 {
			value = value[:i]
		}
		if value == "C" || value == "POSIX" || value == "" {
			break
		}
		if l, err := NewLocale(value); err == nil {
			return l
		}
		break
	}
	l, _ := NewLocale(DefaultLocaleIdentifier)
	return l
}

// LocaleComponents are the parts of a locale identifier. Empty fields are omitted.
type LocaleComponents struct {
	Language string
	Script   string
	Region   string
}

// IdentifierFromComponents joins the components into an identifier such as
// "zh_Hans_TW". Known subtags are canonicalized; unknown but well-formed ones,
// such as the region "409", are kept with conventional casing.
func IdentifierFromComponents(c LocaleComponents) string {
	parts := make([]string, 0, 3)
	if c.Language != "" {
		if b, err := language.ParseBase(c.Language); err == nil {
			parts = append(parts, b.String())
		} else {
			parts = append(parts, strings.ToLower(c.Language))
		}
	}
	if c.Script != "" {
		if s, err := language.ParseScript(c.Script); err == nil {
			parts = append(parts, s.String())
		} else {
			parts = append(parts, c.Script)
		}
	}
	if c.Region != "" {
		if r, err := language.ParseRegion(c.Region); err == nil {
			parts = append(parts, r.String())
		} else {
			parts = append(parts, strings.ToUpper(c.Region))
		}
	}
	return strings.Join(parts, "_")
}
