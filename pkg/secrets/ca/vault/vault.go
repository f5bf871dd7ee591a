package vault

import (
	"crypto/rsa"
	"errors"
	"strings"

	"github.com/dualsign/SET-simulator/pkg/secrets/ca"
	"github.com/dualsign/SET-simulator/pkg/utils"

	"github.com/hashicorp/vault/api"
)

type vaultSecrets struct {
	client   *api.Client
	roleID   string
	secretID string
	keyPath  string
}

func NewVaultSecrets(address string, roleID string, secretID string, keyPath string) (ca.Secrets, error) {
	conf := api.DefaultConfig()
	conf.Address = strings.ReplaceAll(conf.Address, "https://127.0.0.1:8200", address)
	tlsConf := &api.TLSConfig{Insecure: true}
	conf.ConfigureTLS(tlsConf)
	client, err := api.NewClient(conf)
	if err != nil {
		return nil, err
	}

	err = login(client, roleID, secretID)
	if err != nil {
		return nil, err
	}
	return &vaultSecrets{client: client, roleID: roleID, secretID: secretID, keyPath: keyPath}, nil
}

func login(client *api.Client, roleID string, secretID string) error {
	loginPath := "auth/approle/login"
	options := map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	}
	resp, err := client.Logical().Write(loginPath, options)
	if err != nil {
		return err
	}
	client.SetToken(resp.Auth.ClientToken)
	return nil
}

func (vs *vaultSecrets) GetCAKey() (*rsa.PrivateKey, error) {
	resp, err := vs.client.Logical().Read(vs.keyPath)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Data == nil {
		return nil, errors.New("no secret at CA key path")
	}
	keyPEM, ok := resp.Data["private_key"].(string)
	if !ok {
		return nil, errors.New("secret does not hold a private_key field")
	}
	return utils.ParseRSAPrivateKeyPEM([]byte(keyPEM))
}
