// Package mnemonic implements BIP-39 mnemonic validation and mnemonic to
// seed derivation.
package mnemonic

import (
	"regexp"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// supportedWordCounts are the BIP-39 word counts accepted by this module.
var supportedWordCounts = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[.):]\s*`)
	bulletListRegex   = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// Generate creates a new BIP-39 mnemonic with the given word count, one
// of {12,15,18,21,24}.
func Generate(wordCount int) (string, error) {
	bitSize, ok := supportedWordCounts[wordCount]
	if !ok {
		return "", errInvalidWordCount(wordCount)
	}

	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Random returns a 12-word BIP-39 mnemonic sampled from a cryptographically
// secure entropy source. This is random_mnemonic() in the public contract.
func Random() (string, error) {
	return Generate(12)
}

// Valid reports whether s conforms to BIP-39: a supported word count,
// every word present in the English word list, and a correct checksum.
// This never errors; invalid input simply yields false.
func Valid(s string) bool {
	normalized := Normalize(s)
	words := strings.Fields(normalized)
	if _, ok := supportedWordCounts[len(words)]; !ok {
		return false
	}
	_, err := bip39.MnemonicToByteArray(normalized)
	return err == nil
}

// ToSeed derives the 64-byte BIP-39 seed via PBKDF2-HMAC-SHA512 (2048
// iterations, salt "mnemonic"||passphrase). Returns an error if the
// mnemonic does not pass Valid.
func ToSeed(s, passphrase string) ([]byte, error) {
	normalized := Normalize(s)
	if !Valid(normalized) {
		return nil, errInvalidMnemonic()
	}
	return bip39.NewSeedWithErrorChecking(normalized, passphrase)
}

// Normalize lowercases the input, strips numbered-list and bullet-list
// prefixes, collapses commas and whitespace runs to single spaces, and
// trims the result. Mnemonic input pasted from a notes app or a numbered
// backup sheet is common enough to normalize rather than reject.
func Normalize(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// WordList returns the BIP-39 English word list.
func WordList() []string {
	return bip39.GetWordList()
}
