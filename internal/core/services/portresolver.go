package services

import (
	"regexp"
	"strconv"
)

// portDirective matches a port flag inside a compact exec-form launch
// command, e.g. CMD ["uvicorn","app:app","--port","9000"]. It is a textual
// heuristic over the whole recipe, not a parse of its CMD or ENTRYPOINT: a
// match in a comment or a RUN line counts too, while shell-form
// "--port 9000" and exec-form with a space after the comma are not
// recognised.
var portDirective = regexp.MustCompile(`--port",?"(\d+)`)

// ResolvePort returns the container port declared by the first port
// directive in recipe. ok is false when the recipe has none.
func ResolvePort(recipe string) (port int, ok bool) {
	m := portDirective.FindStringSubmatch(recipe)
	if m == nil {
		return 0, false
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

// ResolvePortOr returns the port declared in recipe, or fallback.
func ResolvePortOr(recipe string, fallback int) int {
	if port, ok := ResolvePort(recipe); ok {
		return port
	}
	return fallback
}
