// Package cmd implements the command-line interface for mvgmail.
//
// This package provides the following commands:
//   - authorize, deauthorize: Grant or revoke access for a Gmail account
//   - token: Print a valid access token
//   - accounts: List authorized accounts with token and license state
//   - license: Run the Workspace license check
//   - message get|body|list: Read messages and their bodies
//   - attachment list|get: List and download attachments
//   - send: Build and send a message
//   - version: Display version information
package cmd
