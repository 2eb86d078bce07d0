package httpserver

import (
	"html/template"
	"net/url"
)

// formData feeds the relying-party auto-submit form. html/template
// auto-escapes both fields, satisfying the HTML-entity-escaping
// requirement on substituted values.
type formData struct {
	RedirectURI string
	IDToken     string
}

var formTemplate = template.Must(template.New("rp-form").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing you in&hellip;</title></head>
<body>
<form method="post" action="{{.RedirectURI}}">
<input type="hidden" name="id_token" value="{{.IDToken}}">
</form>
<script>
document.addEventListener("DOMContentLoaded", function () {
  document.forms[0].submit();
});
</script>
</body>
</html>
`))

// addrFromBaseURL derives the listen address ":port" from the configured
// base URL: its explicit port, else 443 for https and 80 otherwise, or
// ":8080" when the URL has no host. The host name itself is not used.
func addrFromBaseURL(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return ":8080"
	}
	if parsed.Port() != "" {
		return ":" + parsed.Port()
	}
	if parsed.Scheme == "https" {
		return ":443"
	}
	return ":80"
}
