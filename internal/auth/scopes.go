package auth

import "strings"

// QBOScopes are requested from Intuit. The month-end workflow only needs the
// accounting API.
var QBOScopes = []string{
	"com.intuit.quickbooks.accounting",
}

// GoogleScopes are requested for the service account: the close workbook lives
// in Sheets and its supporting files in Drive.
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.readonly",
}

// ScopeString returns scopes in the space-separated form OAuth2 uses on the wire.
func ScopeString(scopes []string) string {
	return strings.Join(scopes, " ")
}
