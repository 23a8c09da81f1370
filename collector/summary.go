package collector

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// Summary turns a request type name into an operation summary:
// "users.CreateUserRequest" becomes "create user".
func Summary(request string) string {
	if i := strings.LastIndexAny(request, `\./`); i >= 0 {
		request = request[i+1:]
	}
	request = strings.ReplaceAll(request, "Request", "")
	return strcase.ToDelimited(request, ' ')
}
