// Package e2eechat provides a Go client for an end-to-end encrypted direct
// messaging service.
//
// Each device holds a long-term X25519 key pair. Messages are sealed for the
// recipient's public key with a fresh ephemeral key and nonce, so the server
// only ever stores ciphertext. The private key can be backed up under a
// passphrase and restored on another device.
//
// Basic usage:
//
//	client, err := e2eechat.New(
//	    e2eechat.WithToken(token),
//	    e2eechat.WithDataDir("~/.e2eechat"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Create or load the key pair and publish the public key
//	if _, _, err := client.Setup(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Send a message; the recipient's key is looked up
//	if err := client.Send(ctx, bobID, "", "hi bob"); err != nil {
//	    log.Fatal(err)
//	}
//
//	msgs, err := client.Conversation(ctx, bobID, time.Time{})
//
// Messages that cannot be decrypted, including the ones this device sent,
// are rendered with a placeholder text instead of failing the conversation.
// Senders are not authenticated: anyone who knows a public key can seal a
// message for it. Compare SafetyWords out of band to check that a contact's
// published key is really theirs.
package e2eechat
