package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/mkadit/isoperf/internal/logger"
	"github.com/mkadit/isoperf/iso8583"
	"github.com/mkadit/isoperf/security"
)

var errMissingArgument = errors.New("missing argument")

func importHexKey(m *security.Module, usage security.Usage, name, value string) (*security.Key, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: -%s", errMissingArgument, name)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return m.ImportKey(usage, raw)
}

func kcvCmd(_ context.Context, _ *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("kcv", flag.ContinueOnError)
	keyHex := fs.String("key", "", "DES key (hex)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m := security.NewModule()
	key, err := importHexKey(m, security.UsageZPK, "key", *keyHex)
	if err != nil {
		return err
	}
	kcv, err := m.KeyCheckValue(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hex.EncodeToString(kcv))
	return nil
}

func cvvCmd(_ context.Context, _ *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("cvv", flag.ContinueOnError)
	keyHex := fs.String("key", "", "Card verification key CVKA||CVKB (hex)")
	pan := fs.String("pan", "", "Primary account number")
	expiry := fs.String("exp", "", "Expiry date YYMM")
	serviceCode := fs.String("sc", "000", "Service code; 000 yields CVV2, 999 iCVV")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m := security.NewModule()
	cvk, err := importHexKey(m, security.UsageCVK, "key", *keyHex)
	if err != nil {
		return err
	}
	cvv, err := m.CalculateCVV(cvk, *pan, *expiry, *serviceCode)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, cvv)
	return nil
}

func pinBlockCmd(_ context.Context, _ *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pinblock", flag.ContinueOnError)
	pin := fs.String("pin", "", "Clear PIN")
	pan := fs.String("pan", "", "Primary account number")
	format := fs.Int("format", int(security.FormatISO0), "PIN block format: 1 (ISO-0), 5 (ISO-1), 34 (ISO-2), 47 (ISO-3)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pin == "" {
		return fmt.Errorf("%w: -pin", errMissingArgument)
	}

	block, err := security.CalculatePINBlock(*pin, security.PINBlockFormat(*format), *pan)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, iso8583.EncodeHex(block))
	return nil
}

func genKeyCmd(_ context.Context, _ *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	bits := fs.Int("bits", 128, "Key length: 64, 128 or 192")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := security.GenerateKey(*bits)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, key)
	return nil
}

func encKeyCmd(_ context.Context, _ *logger.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("enckey", flag.ContinueOnError)
	keyHex := fs.String("key", "", "Clear key (hex)")
	kekHex := fs.String("kek", "", "Key encryption key (hex)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m := security.NewModule()
	clearKey, err := importHexKey(m, security.UsageZPK, "key", *keyHex)
	if err != nil {
		return err
	}
	kek, err := importHexKey(m, security.UsageKEK, "kek", *kekHex)
	if err != nil {
		return err
	}
	out, err := m.EncryptKey(clearKey, kek)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %s\n", hex.EncodeToString(out), security.KeyAlgorithm(*keyHex))
	return nil
}
