package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/lunaris/capsuled/internal/authoring"
	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/delivery"
	"github.com/lunaris/capsuled/internal/scheduler"
	"github.com/lunaris/capsuled/internal/server"
	"github.com/lunaris/capsuled/internal/transport/telegram"
	"github.com/lunaris/capsuled/pkg/capsule"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"gopkg.in/natefinch/lumberjack.v2"
)

const dbname = "capsuled.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "capsuled",
		Short:   "Time capsule delivery service",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func kdf(l int, k []byte) []byte {
	nhash := func() hash.Hash {
		h, err := blake2b.New256(nil)
		if err != nil {
			panic(err)
		}
		return h
	}

	payload := make([]byte, l)

	kdf := hkdf.New(nhash, k, nil, nil)
	_, err := io.ReadFull(kdf, payload)
	if err != nil {
		panic(err)
	}

	return payload
}

// secretKey decodes and validates the process-wide codec key.
func secretKey(konf *koanf.Koanf) ([]byte, error) {
	encoded := konf.String("secret_key")
	if encoded == "" {
		return nil, errors.New("secret_key not found")
	}

	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "secret_key must be hex encoded")
	}
	if len(key) != capsule.KeySize {
		return nil, errors.Errorf("secret_key must be %d bytes, got %d", capsule.KeySize, len(key))
	}
	return key, nil
}

func setupLogger(konf *koanf.Koanf) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(konf.String("log.level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if filename := konf.String("log.file"); filename != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    42, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		})
	}
	return logger, nil
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
				return err
			}

			return database.StormInit(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start the gateway and the delivery worker",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
				return err
			}

			key, err := secretKey(konf)
			if err != nil {
				return err
			}

			if konf.String("transport.token") == "" {
				return errors.New("transport token not found")
			}

			logger, err := setupLogger(konf)
			if err != nil {
				return err
			}

			timezone := konf.String("timezone")
			if timezone == "" {
				timezone = "Europe/Moscow"
			}
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return errors.Wrap(err, "could not load timezone")
			}

			codec, err := capsule.NewCodec(key)
			if err != nil {
				return err
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			endpoint := konf.String("transport.endpoint")
			if endpoint == "" {
				endpoint = telegram.DefaultEndpoint
			}
			transport, err := telegram.NewClient(http.DefaultClient, endpoint, konf.String("transport.token"))
			if err != nil {
				return err
			}

			// Refuse to start with unusable transport credentials.
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			username, err := transport.Me(ctx)
			cancel()
			if err != nil {
				return errors.Wrap(err, "could not authenticate against the transport")
			}
			logger.Infof("transport authenticated as @%s", username)

			executor := delivery.NewExecutor(db, codec, transport, logger.WithField("component", "executor"))
			if timeout := konf.Duration("delivery.recipient_timeout"); timeout > 0 {
				executor.RecipientTimeout = timeout
			}

			broker := scheduler.NewMemoryBroker(func(payload string) {
				if err := executor.Deliver(context.Background(), payload); err != nil {
					logger.WithError(err).WithField("capsule", payload).Error("delivery failed")
				}
			}, logger.WithField("component", "broker"))
			defer broker.Stop()

			sched := scheduler.New(db, broker, logger.WithField("component", "scheduler"))
			if err := sched.Reconcile(); err != nil {
				return errors.Wrap(err, "could not reconcile triggers")
			}

			manager := authoring.NewManager(db, codec, sched, executor, loc, logger.WithField("component", "authoring"))

			engine := server.EchoEngine(server.IOC{
				Version:       version,
				Database:      db,
				Manager:       manager,
				Transport:     transport,
				WebhookSecret: hex.EncodeToString(kdf(16, key)),
				Logger:        logger.WithField("component", "gateway"),
			})
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			logger.Infof("server listening on %s", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					logger.Infof("removing existing %s", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)
