package api

import (
	"errors"
	"html/template"
	"net/http"

	"storefront-customizer-app/internal/application"

	"github.com/rs/zerolog"
)

// The page escapes an embedding iframe before following the authorize URL.
var installPage = template.Must(template.New("install").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting</title></head>
<body>
<script>
  var target = {{.URL}};
  if (window.top !== window.self) {
    window.top.location.href = target;
  } else {
    window.location.href = target;
  }
</script>
<noscript><a href="{{.URL}}">Continue to install</a></noscript>
</body>
</html>
`))

// installHandler starts the OAuth flow
func installHandler(oauth *application.OAuthService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		authURL, err := oauth.BeginInstall(r.Context(), shop)
		switch {
		case errors.Is(err, application.ErrMissingParams):
			http.Error(w, "shop parameter is required", http.StatusBadRequest)
			return
		case errors.Is(err, application.ErrInvalidShop):
			http.Error(w, "invalid shop parameter", http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := installPage.Execute(w, struct{ URL string }{authURL}); err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to render install page")
		}
	}
}

// callbackHandler completes the OAuth flow
func callbackHandler(oauth *application.OAuthService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirect, err := oauth.CompleteInstall(r.Context(), r.URL.Query())
		if err != nil {
			status := http.StatusInternalServerError
			msg := "Authentication failed"
			switch {
			case errors.Is(err, application.ErrMissingParams):
				status, msg = http.StatusBadRequest, "Missing required parameters"
			case errors.Is(err, application.ErrInvalidShop):
				status, msg = http.StatusBadRequest, "Invalid shop parameter"
			case errors.Is(err, application.ErrInvalidHMAC):
				status, msg = http.StatusUnauthorized, "Invalid signature"
			case errors.Is(err, application.ErrInvalidState):
				status, msg = http.StatusUnauthorized, "Invalid session"
			}
			logger.Warn().Err(err).Int("status", status).Str("shop", r.URL.Query().Get("shop")).Msg("OAuth callback rejected")
			http.Error(w, msg, status)
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}
