package google

import gmail "google.golang.org/api/gmail/v1"

// Scopes are the OAuth scopes mailtriage asks for. Reading thread metadata
// and changing labels both fall under gmail.modify; nothing is ever sent or
// deleted.
var Scopes = []string{
	gmail.GmailModifyScope,
}
