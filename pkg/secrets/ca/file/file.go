package file

import (
	"crypto/rsa"
	"io/ioutil"

	"github.com/dualsign/SET-simulator/pkg/secrets/ca"
	"github.com/dualsign/SET-simulator/pkg/utils"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

type file struct {
	key    string
	logger log.Logger
}

func NewFile(key string, logger log.Logger) ca.Secrets {
	return &file{key, logger}
}

func (f *file) GetCAKey() (*rsa.PrivateKey, error) {
	keyPEM, err := ioutil.ReadFile(f.key)
	if err != nil {
		level.Error(f.logger).Log("err", err, "msg", "Could not load CA signing key")
		return nil, err
	}
	key, err := utils.ParseRSAPrivateKeyPEM(keyPEM)
	if err != nil {
		level.Error(f.logger).Log("err", err, "msg", "Could not parse CA signing key")
		return nil, err
	}
	level.Info(f.logger).Log("msg", "CA signing key loaded")
	return key, nil
}
