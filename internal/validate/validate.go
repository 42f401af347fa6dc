package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	reQ     = regexp.MustCompile(`^[\p{L}\p{N} _'.,\-]{1,50}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reIndex = regexp.MustCompile(`^(\w+)\[(\d+)\]\.(\w+)$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return val
}

// Errors maps a form field key to a message, e.g. "clientName" or "item_0_quantity".
type Errors struct {
	Fields map[string]string
}

func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add keeps the first message recorded for a key.
func (e *Errors) Add(key, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[key]; !ok {
		e.Fields[key] = msg
	}
}

func (e *Errors) Empty() bool { return e == nil || len(e.Fields) == 0 }

// Err returns nil when nothing was recorded, so callers can `return errs.Err()`.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Struct runs the struct tags of dst and collects failures into a fresh Errors.
func Struct(dst any) *Errors {
	errs := &Errors{}
	if err := v.Struct(dst); err != nil {
		fes, ok := err.(validator.ValidationErrors)
		if !ok {
			errs.Add("_", err.Error())
			return errs
		}
		for _, fe := range fes {
			errs.Add(FieldKey(fe.Namespace()), message(fe))
		}
	}
	return errs
}

// FieldKey turns a validator namespace such as "ReservationInput.items[2].itemId"
// into the flat key the forms use ("item_2_id").
func FieldKey(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	if m := reIndex.FindStringSubmatch(namespace); m != nil {
		field := m[3]
		if field == "itemId" {
			field = "id"
		}
		return fmt.Sprintf("%s_%s_%s", strings.TrimSuffix(m[1], "s"), m[2], field)
	}
	return namespace
}

// LineKey builds the flat key for a line-item field.
func LineKey(index int, field string) string {
	return fmt.Sprintf("item_%d_%s", index, field)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return "select at least one item"
		}
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "select at least one item"
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("cannot be less than %s", fe.Param())
	case "ne":
		return fmt.Sprintf("cannot be %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}

// Q validates a search query: trims, enforces allowed characters and max length.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	if r := []rune(s); len(r) > 50 {
		s = string(r[:50])
	}
	return s, reQ.MatchString(s)
}

// ID validates a store-assigned document identifier.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// IDList splits a comma separated list of ids, dropping blanks and invalid entries.
func IDList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if id, ok := ID(part); ok {
			out = append(out, id)
		}
	}
	return out
}
