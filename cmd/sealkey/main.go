// Command sealkey encrypts a Drive service-account key file with KMS and
// prints the ciphertext to store in the service_key_param SSM parameter.
package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/smartlens/drive-backend/internal/config"
	"github.com/smartlens/drive-backend/internal/credentials"
	"github.com/smartlens/drive-backend/internal/crypto"
	"github.com/smartlens/drive-backend/internal/logging"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: sealkey <service-account.json>")
		os.Exit(2)
	}
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat).GetLogger("sealkey")

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Error("failed to read key file", "error", err)
		os.Exit(1)
	}
	// Refuse to seal something the service could not load back.
	identity, err := credentials.FromJSON(ctx, raw)
	if err != nil {
		log.Error("invalid service key", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}
	sealed, err := crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID).Encrypt(ctx, string(raw))
	if err != nil {
		log.Error("failed to encrypt key", "error", err)
		os.Exit(1)
	}

	log.Info("sealed service key", "service_email", identity.Email, "kms_key_id", cfg.KMSKeyID, "param", cfg.ServiceKeyParam)
	fmt.Println(sealed)
}
