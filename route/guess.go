package route

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Guess builds a template for a path no route matched by turning numeric
// and UUID segments into parameters: /users/42/posts becomes
// /users/{arg1}/posts.
func Guess(path string) string {
	nparams := 1
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = fmt.Sprintf("{arg%d}", nparams)
			nparams++
		} else if _, err := uuid.Parse(p); err == nil {
			parts[i] = fmt.Sprintf("{arg%d}", nparams)
			nparams++
		}
	}
	return strings.Join(parts, "/")
}
