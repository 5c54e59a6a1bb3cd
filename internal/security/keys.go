package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// readPEM loads the first PEM block of a key file
func readPEM(path, what string) (*pem.Block, error) {
	if path == "" {
		return nil, fmt.Errorf("%s key path is empty", what)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s key: %w", what, err)
	}

	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%s key %s: no PEM block", what, path)
	}
	return block, nil
}

// PKIX ("PUBLIC KEY") or PKCS1 ("RSA PUBLIC KEY")
func rsaPublicKey(block *pem.Block) (*rsa.PublicKey, error) {
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX: %w", err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}
		return pub, nil
	}
	return nil, fmt.Errorf("unsupported public key block %q", block.Type)
}

// PKCS1 ("RSA PRIVATE KEY") or PKCS8 ("PRIVATE KEY")
func rsaPrivateKey(block *pem.Block) (*rsa.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS8: %w", err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA private key")
		}
		return priv, nil
	}
	return nil, fmt.Errorf("unsupported private key block %q", block.Type)
}
