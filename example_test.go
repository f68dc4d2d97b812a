package e2eechat_test

import (
	"fmt"
	"log"

	e2eechat "github.com/e2eechat/client-go"
)

// Two devices exchange a message without a server. Keys live in memory
// here; use WithDataDir to keep them across runs.
func Example() {
	alice, err := e2eechat.New()
	if err != nil {
		log.Fatal(err)
	}
	defer alice.Close()

	bob, err := e2eechat.New()
	if err != nil {
		log.Fatal(err)
	}
	defer bob.Close()

	bobKey, _, err := bob.EnsureKeyPair()
	if err != nil {
		log.Fatal(err)
	}

	sealed, err := alice.EncryptMessage(bobKey, "hello bob")
	if err != nil {
		log.Fatal(err)
	}

	text, err := bob.DecryptMessage(sealed)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(text)

	// Alice has no private key, so she cannot read it back.
	_, err = alice.DecryptMessage(sealed)
	fmt.Println(err)
	// Output:
	// hello bob
	// decrypt: no local private key; run setup or restore a backup
}
