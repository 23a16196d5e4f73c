package test

import (
	"errors"
	"os"
)

// CreateTempFile writes content into a new file of the temporary directory
// and returns its path. The caller is in charge of removing it.
func CreateTempFile(content []byte) (string, error) {
	f, err := os.CreateTemp("", "framesync-*.yml")
	if err != nil {
		return "", err
	}

	_, err = f.Write(content)
	err = errors.Join(err, f.Close())
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}
