package main

import (
	"farmlokal/internal/conf"
	"farmlokal/pkg/crypto"
)

// newCryptoService creates the AES crypto service from config. A missing key
// means cached credentials are stored in plaintext.
func newCryptoService(auth *conf.Auth) (*crypto.AESCrypto, error) {
	if auth == nil || auth.Encryption == nil || auth.Encryption.Key == "" {
		return nil, nil
	}
	return crypto.NewAESCrypto([]byte(auth.Encryption.Key))
}
