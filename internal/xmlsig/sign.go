package xmlsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Algorithm identifiers embedded in the SignedInfo block.
const (
	CanonicalizationAlg = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	DigestAlg           = "http://www.w3.org/2001/04/xmlenc#sha256"
	SignatureAlg        = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
)

// Options supplies the signer's key material.
type Options struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// Sign removes any existing signature block, canonicalizes the document,
// digests it, and embeds a signature block (SignedInfo, SignatureValue,
// X509Certificate) immediately before the root closing tag.
func Sign(doc []byte, opts Options) ([]byte, error) {
	if opts.PrivateKey == nil || opts.Certificate == nil {
		return nil, errors.New("xmlsig: missing private key or certificate")
	}
	stripped := RemoveSignature(doc)
	canon, err := Canonicalize(stripped)
	if err != nil {
		return nil, fmt.Errorf("xmlsig: canonicalize document: %w", err)
	}
	digest := sha256.Sum256(canon)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	signedInfo := buildSignedInfo(digestB64)
	canonSI, err := Canonicalize([]byte(signedInfo))
	if err != nil {
		return nil, fmt.Errorf("xmlsig: canonicalize SignedInfo: %w", err)
	}
	siDigest := sha256.Sum256(canonSI)
	sig, err := rsa.SignPKCS1v15(rand.Reader, opts.PrivateKey, crypto.SHA256, siDigest[:])
	if err != nil {
		return nil, fmt.Errorf("xmlsig: sign: %w", err)
	}

	var b strings.Builder
	b.WriteString("<Signature>")
	b.WriteString(signedInfo)
	b.WriteString("<SignatureValue>")
	b.WriteString(base64.StdEncoding.EncodeToString(sig))
	b.WriteString("</SignatureValue>")
	b.WriteString("<KeyInfo><X509Data><X509Certificate>")
	b.WriteString(base64.StdEncoding.EncodeToString(opts.Certificate.Raw))
	b.WriteString("</X509Certificate></X509Data></KeyInfo>")
	b.WriteString("</Signature>")

	return insertBeforeRootClose(stripped, b.String())
}

func buildSignedInfo(digestB64 string) string {
	var b strings.Builder
	b.WriteString("<SignedInfo>")
	b.WriteString(`<CanonicalizationMethod Algorithm="` + CanonicalizationAlg + `"></CanonicalizationMethod>`)
	b.WriteString(`<SignatureMethod Algorithm="` + SignatureAlg + `"></SignatureMethod>`)
	b.WriteString(`<Reference URI="">`)
	b.WriteString(`<DigestMethod Algorithm="` + DigestAlg + `"></DigestMethod>`)
	b.WriteString("<DigestValue>" + digestB64 + "</DigestValue>")
	b.WriteString("</Reference>")
	b.WriteString("</SignedInfo>")
	return b.String()
}

// RemoveSignature returns the document with its Signature block (if any)
// cut out. Safe on documents without one.
func RemoveSignature(doc []byte) []byte {
	s := string(doc)
	start := strings.Index(s, "<Signature>")
	if start < 0 {
		return doc
	}
	end := strings.Index(s[start:], "</Signature>")
	if end < 0 {
		return doc
	}
	return []byte(s[:start] + s[start+end+len("</Signature>"):])
}

// insertBeforeRootClose splices the signature block in front of the last
// closing tag of the document.
func insertBeforeRootClose(doc []byte, block string) ([]byte, error) {
	s := string(doc)
	idx := strings.LastIndex(s, "</")
	if idx < 0 {
		return nil, errors.New("xmlsig: document has no root closing tag")
	}
	return []byte(s[:idx] + block + s[idx:]), nil
}

// GenerateKeyAndCert creates a throwaway RSA key and self-signed
// certificate, used by the simulation mode and tests.
func GenerateKeyAndCert(commonName string) (*rsa.PrivateKey, *x509.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}
