//go:build nosha256

package ipmi

const sha256Supported = false
