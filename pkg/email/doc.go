// Package email sends transactional mail.
//
// EmailSender has two implementations: a Postmark client for deployed
// environments and DevSender, which writes messages to disk so they can be
// inspected locally. Message bodies are rendered with the templates
// subpackage.
package email
