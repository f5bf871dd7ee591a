// Copyright 2016 SMFS Inc DBA GRIMM. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dualsign/SET-simulator/pkg/bank"
	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/client"
	"github.com/dualsign/SET-simulator/pkg/depot"
	"github.com/dualsign/SET-simulator/pkg/depot/inmem"
	"github.com/dualsign/SET-simulator/pkg/depot/relational"
	"github.com/dualsign/SET-simulator/pkg/discovery/consul"
	"github.com/dualsign/SET-simulator/pkg/keys"
	"github.com/dualsign/SET-simulator/pkg/merchant"
	casecrets "github.com/dualsign/SET-simulator/pkg/secrets/ca"
	"github.com/dualsign/SET-simulator/pkg/secrets/ca/file"
	"github.com/dualsign/SET-simulator/pkg/secrets/ca/vault"
	"github.com/dualsign/SET-simulator/pkg/simulator"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

func main() {
	var (
		flCAKey = flag.String("cakey", envString("SIMULATOR_CA_KEY", ""), "CA signing key file (PEM), generated when empty")

		flVaultRoleId   = flag.String("vaultRoleId", envString("SIMULATOR_VAULT_ROLEID", ""), "Vault role ID")
		flVaultSecretId = flag.String("vaultSecretId", envString("SIMULATOR_VAULT_SECRETID", ""), "Vault secret ID")
		flVaultKeyPath  = flag.String("vaultKeyPath", envString("SIMULATOR_VAULT_KEYPATH", ""), "Vault path of the CA signing key")
		flVaultAddress  = flag.String("vaultAddress", envString("SIMULATOR_VAULT_ADDRESS", ""), "Vault ADDRESS")

		flConsulProtocol = flag.String("consulprotocol", envString("SIMULATOR_CONSUL_PROTOCOL", ""), "Consul protocol")
		flConsulHost     = flag.String("consulhost", envString("SIMULATOR_CONSUL_HOST", ""), "Consul host")
		flConsulPort     = flag.String("consulport", envString("SIMULATOR_CONSUL_PORT", ""), "Consul port")
		flConsulCA       = flag.String("consulca", envString("SIMULATOR_CONSUL_CA", ""), "Consul CA path")

		flPostgresDSN = flag.String("postgres", envString("SIMULATOR_POSTGRES_DSN", ""), "Postgres DSN for the certificate store, in-memory when empty")

		flAddress = flag.String("bind", envString("SIMULATOR_ADDRESS", ""), "bind address")
		flPort    = flag.String("port", envString("SIMULATOR_PORT", "8080"), "listening port")
		flSeed    = flag.Bool("seed", envBool("SIMULATOR_SEED"), "seed the demo merchants and clients")
	)
	flag.Parse()

	var logger log.Logger
	{
		logger = log.NewJSONLogger(os.Stdout)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	jcfg, err := jaegercfg.FromEnv()
	if err != nil {
		level.Error(logger).Log("err", err, "msg", "Could not load Jaeger configuration values fron environment")
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "Jaeger configuration values loaded")
	tracer, closer, err := jcfg.NewTracer()
	if err != nil {
		level.Error(logger).Log("err", err, "msg", "Could not start Jaeger tracer")
		os.Exit(1)
	}
	defer closer.Close()
	level.Info(logger).Log("msg", "Jaeger tracer started")
	fieldKeys := []string{"method", "error"}

	var certStore depot.Depot
	if *flPostgresDSN != "" {
		certStore, err = relational.NewDB("postgres", *flPostgresDSN, log.With(logger, "component", "depot"))
		if err != nil {
			level.Error(logger).Log("err", err, "msg", "Could not connect to the certificate store database")
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "Connection established with certificate store database")
	} else {
		certStore = inmem.NewDepot(log.With(logger, "component", "depot"))
	}

	caKeys, err := loadCAKeys(*flCAKey, *flVaultAddress, *flVaultRoleId, *flVaultSecretId, *flVaultKeyPath, logger)
	if err != nil {
		level.Error(logger).Log("err", err, "msg", "Could not obtain the CA signing key")
		os.Exit(1)
	}

	authority, err := ca.New("SET-CA", caKeys, certStore, log.With(logger, "component", "ca"))
	if err != nil {
		level.Error(logger).Log("err", err, "msg", "Could not initialize the certificate authority")
		os.Exit(1)
	}
	bk, err := bank.New("GlobalBank", authority, log.With(logger, "component", "bank"))
	if err != nil {
		level.Error(logger).Log("err", err, "msg", "Could not initialize the bank")
		os.Exit(1)
	}

	merchants := make(map[string]*merchant.Merchant)
	clients := make(map[string]*client.Client)
	if *flSeed {
		if err := seed(authority, bk, merchants, clients, logger); err != nil {
			level.Error(logger).Log("err", err, "msg", "Could not seed the demo population")
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "Demo merchants and clients seeded")
	}

	var svc simulator.Service
	{
		svc = simulator.NewService(authority, bk, merchants, clients, logger)
		svc = simulator.LoggingMiddleware(logger)(svc)
		svc = simulator.NewInstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "set_simulator",
				Subsystem: "simulator",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "set_simulator",
				Subsystem: "simulator",
				Name:      "request_latency_microseconds",
				Help:      "Total duration of requests in microseconds.",
			}, fieldKeys),
		)(svc)
	}

	h := simulator.MakeHTTPHandler(svc, log.With(logger, "component", "HTTP"), tracer)
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/", h)

	errs := make(chan error)
	go func() {
		c := make(chan os.Signal)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	if *flConsulHost != "" {
		consulsd, err := consul.NewServiceDiscovery(*flConsulProtocol, *flConsulHost, *flConsulPort, *flConsulCA, logger)
		if err != nil {
			level.Error(logger).Log("err", err, "msg", "Could not start connection with Consul Service Discovery")
			os.Exit(1)
		}
		level.Info(logger).Log("msg", "Connection established with Consul Service Discovery")
		consulsd.Register("http", *flAddress, *flPort)
		defer consulsd.Deregister()
	}

	go func() {
		level.Info(logger).Log("transport", "HTTP", "address", *flAddress+":"+*flPort, "msg", "listening")
		errs <- http.ListenAndServe(*flAddress+":"+*flPort, nil)
	}()
	level.Info(logger).Log("exit", <-errs)
}

// loadCAKeys picks the signing key source: a PEM file when configured,
// Vault when configured, otherwise a freshly generated key.
func loadCAKeys(keyFile, vaultAddress, vaultRoleId, vaultSecretId, vaultKeyPath string, logger log.Logger) (*keys.KeyPair, error) {
	var src casecrets.Secrets
	switch {
	case keyFile != "":
		src = file.NewFile(keyFile, logger)
	case vaultAddress != "":
		var err error
		src, err = vault.NewVaultSecrets(vaultAddress, vaultRoleId, vaultSecretId, vaultKeyPath)
		if err != nil {
			return nil, err
		}
	default:
		level.Info(logger).Log("msg", "No CA key source configured, generating an ephemeral key")
		return nil, nil
	}
	key, err := src.GetCAKey()
	if err != nil {
		return nil, err
	}
	return keys.NewKeyPair(key), nil
}

func seed(authority *ca.CertificateAuthority, bk *bank.Bank, merchants map[string]*merchant.Merchant, clients map[string]*client.Client, logger log.Logger) error {
	for _, name := range []string{"Amazon", "FNAC", "Darty"} {
		m, err := merchant.New(name, authority, bk, log.With(logger, "component", "merchant"))
		if err != nil {
			return err
		}
		merchants[name] = m
	}
	demo := []struct {
		name string
		card string
	}{
		{"Alice", "4970-1111-2222-3333"},
		{"Bob", "4970-4444-5555-6666"},
		{"Charlie", "4970-7777-8888-9999"},
	}
	for _, d := range demo {
		cl, err := client.New(d.name, d.card, authority, log.With(logger, "component", "client"))
		if err != nil {
			return err
		}
		if err := bk.CreateAccount(d.card, d.name, simulator.DefaultInitialBalance); err != nil {
			return err
		}
		clients[d.name] = cl
	}
	return nil
}

func envString(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

func envBool(key string) bool {
	if env := os.Getenv(key); env == "true" {
		return true
	}
	return false
}

func envInt(key string, def int) int {
	if env := os.Getenv(key); env != "" {
		env, _ := strconv.Atoi(env)
		return env
	}
	return def
}
