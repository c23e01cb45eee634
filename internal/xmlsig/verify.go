package xmlsig

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Verification failure sentinels.
var (
	ErrNoSignature       = errors.New("no signature block")
	ErrDigestMismatch    = errors.New("digest mismatch")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// Verify reports whether the embedded signature validates the document.
func Verify(doc []byte) bool {
	ok, _ := VerifyWithDetails(doc)
	return ok
}

// VerifyWithDetails recomputes the digest over the signature-stripped,
// canonicalized document, compares it against the embedded DigestValue,
// then verifies the signature over the canonicalized SignedInfo block
// against the embedded certificate.
func VerifyWithDetails(doc []byte) (bool, error) {
	sigBlock, err := extractBlock(string(doc), "Signature")
	if err != nil {
		return false, ErrNoSignature
	}
	signedInfo, err := extractBlock(sigBlock, "SignedInfo")
	if err != nil {
		return false, fmt.Errorf("xmlsig: malformed signature: %w", err)
	}
	digestB64, err := elementText(sigBlock, "DigestValue")
	if err != nil {
		return false, fmt.Errorf("xmlsig: malformed signature: %w", err)
	}
	sigB64, err := elementText(sigBlock, "SignatureValue")
	if err != nil {
		return false, fmt.Errorf("xmlsig: malformed signature: %w", err)
	}
	certB64, err := elementText(sigBlock, "X509Certificate")
	if err != nil {
		return false, fmt.Errorf("xmlsig: malformed signature: %w", err)
	}

	stripped := RemoveSignature(doc)
	canon, err := Canonicalize(stripped)
	if err != nil {
		return false, fmt.Errorf("xmlsig: canonicalize document: %w", err)
	}
	digest := sha256.Sum256(canon)
	if base64.StdEncoding.EncodeToString(digest[:]) != strings.TrimSpace(digestB64) {
		return false, ErrDigestMismatch
	}

	canonSI, err := Canonicalize([]byte(signedInfo))
	if err != nil {
		return false, fmt.Errorf("xmlsig: canonicalize SignedInfo: %w", err)
	}
	siDigest := sha256.Sum256(canonSI)

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigB64))
	if err != nil {
		return false, fmt.Errorf("xmlsig: decode signature value: %w", err)
	}
	certDER, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certB64))
	if err != nil {
		return false, fmt.Errorf("xmlsig: decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return false, fmt.Errorf("xmlsig: parse certificate: %w", err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false, errors.New("xmlsig: certificate key is not RSA")
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, siDigest[:], sig); err != nil {
		return false, ErrSignatureMismatch
	}
	return true, nil
}

// extractBlock returns "<name ...>...</name>" including the tags.
func extractBlock(s, name string) (string, error) {
	open := "<" + name + ">"
	start := strings.Index(s, open)
	if start < 0 {
		// allow attributes on the opening tag
		start = strings.Index(s, "<"+name+" ")
		if start < 0 {
			return "", errors.New(name + " element not found")
		}
	}
	close := "</" + name + ">"
	end := strings.Index(s[start:], close)
	if end < 0 {
		return "", errors.New(name + " element not terminated")
	}
	return s[start : start+end+len(close)], nil
}

// elementText returns the character data inside the first occurrence of
// the named element.
func elementText(s, name string) (string, error) {
	block, err := extractBlock(s, name)
	if err != nil {
		return "", err
	}
	gt := strings.IndexByte(block, '>')
	lt := strings.LastIndex(block, "</")
	if gt < 0 || lt < gt {
		return "", errors.New(name + " element malformed")
	}
	return block[gt+1 : lt], nil
}
