package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// FlashCookie carries a one-shot message across a browser redirect.
const FlashCookie = "zh_flash"

// maxBodyBytes bounds request bodies decoded by DecodeBody.
const maxBodyBytes = 1 << 20

// ErrUnsupportedMediaType is returned by DecodeBody for bodies that are
// neither JSON nor form encoded.
var ErrUnsupportedMediaType = errors.New("httpx: unsupported media type")

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WriteOK writes a successful envelope.
func WriteOK(w http.ResponseWriter, code int, msg string, data any) {
	WriteJSON(w, code, Envelope{Success: true, Message: msg, Data: data})
}

// WriteError writes a failed envelope.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, Envelope{Success: false, Message: msg})
}

// WantsHTML reports whether the client is a browser navigating pages rather
// than an API caller. Browsers get redirects with a flash cookie.
func WantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// Redirect sends a 303 to location and stores msg in the flash cookie under
// the given kind ("success" or "error").
func Redirect(w http.ResponseWriter, r *http.Request, location, kind, msg string) {
	if msg != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     FlashCookie,
			Value:    url.QueryEscape(kind + ":" + msg),
			Path:     "/",
			MaxAge:   60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// PopFlash reads and clears the flash cookie. It returns empty strings when
// no flash is pending.
func PopFlash(w http.ResponseWriter, r *http.Request) (kind, msg string) {
	c, err := r.Cookie(FlashCookie)
	if err != nil {
		return "", ""
	}
	http.SetCookie(w, &http.Cookie{Name: FlashCookie, Value: "", Path: "/", MaxAge: -1, Expires: time.Unix(0, 0)})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", ""
	}
	kind, msg, _ = strings.Cut(raw, ":")
	return kind, msg
}

// DecodeBody decodes a JSON or form-encoded request body into dst, which
// must be a pointer to a struct. Form fields are matched by json tag name.
func DecodeBody(r *http.Request, dst any) error {
	ct := r.Header.Get("Content-Type")
	mt, _, _ := mime.ParseMediaType(ct)
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	switch mt {
	case "application/json", "":
		err := json.NewDecoder(r.Body).Decode(dst)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode json body: %w", err)
		}
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
		return decodeForm(r.PostForm, dst)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		return decodeForm(r.PostForm, dst)
	default:
		return ErrUnsupportedMediaType
	}
}

func decodeForm(form url.Values, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode form: destination must be a struct pointer")
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := range rt.NumField() {
		field := rt.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" || !form.Has(name) {
			continue
		}
		raw := strings.TrimSpace(form.Get(name))
		fv := rv.Field(i)

		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("decode form field %s: %w", name, err)
			}
			fv.SetInt(n)
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("decode form field %s: %w", name, err)
			}
			fv.SetFloat(f)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("decode form field %s: %w", name, err)
			}
			fv.SetBool(b)
		}
	}
	return nil
}
