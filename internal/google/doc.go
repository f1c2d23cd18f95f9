// Package google bootstraps OAuth2 credentials for the Gmail API.
//
// An installed-app client secret (credentials.json, downloaded from the
// Google Cloud console) is turned into an oauth2.Config. The operator
// authorizes once with Login; the resulting token is stored as JSON in the
// token file and refreshed tokens are written back to it.
package google
