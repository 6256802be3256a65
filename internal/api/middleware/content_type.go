package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/agriai/agriai/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// AllowContentTypes rejects POST, PUT and PATCH bodies whose media type is
// not one of types with 415 Unsupported Media Type. A missing Content-Type
// is let through so handlers report the decode error themselves.
func AllowContentTypes(types ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Content-Type")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(header)
			if err == nil {
				for _, t := range types {
					if strings.EqualFold(mediaType, t) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			problem := models.NewUnsupportedMediaType(GetRequestID(r.Context()),
				"Content-Type must be one of: "+strings.Join(types, ", "))
			problem.Instance = r.URL.Path
			problem.Write(w)
		})
	}
}
