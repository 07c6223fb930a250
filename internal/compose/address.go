package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
)

// ErrInvalidAddress is returned when an address list cannot be parsed.
var ErrInvalidAddress = errors.New("invalid email address")

// ParseAddresses parses a comma separated RFC 5322 address list. An empty
// list yields no addresses.
func ParseAddresses(list string) ([]*mail.Address, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	addrs, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addrs, nil
}

func parseAddressFields(fields []string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, f := range fields {
		addrs, err := ParseAddresses(f)
		if err != nil {
			return nil, err
		}
		out = append(out, addrs...)
	}
	return out, nil
}
