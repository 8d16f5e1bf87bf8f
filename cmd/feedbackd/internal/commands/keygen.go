package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/Quisharoo/manager-feedback-questions-sub000/keys"
)

type KeygenCmd struct {
	Bits int `help:"secret length in bits (multiple of 8)" default:"256"`

	out io.Writer
}

func (c *KeygenCmd) Run() error {
	secret, err := keys.GenerateKey(c.Bits)
	if err != nil {
		return err
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, secret)
	return err
}
