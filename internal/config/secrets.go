package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const minJWTSecretLength = 32

// SecretValueAPI is the part of the Secrets Manager client used here.
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveJWTSecret returns the token signing key. With JWT_SECRET_ARN set the
// key is fetched from AWS Secrets Manager, otherwise JWT_SECRET is used.
func ResolveJWTSecret(ctx context.Context, cfg *Config) (string, error) {
	if cfg.JWTSecretARN == "" {
		return checkJWTSecret(cfg.JWTSecret)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	return FetchJWTSecret(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.JWTSecretARN)
}

// FetchJWTSecret reads the signing key from a secret. The secret is either the
// key itself or a JSON object holding it under "JWT_SECRET".
func FetchJWTSecret(ctx context.Context, client SecretValueAPI, secretID string) (string, error) {
	output, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case output.SecretString != nil:
		payload = *output.SecretString
	case len(output.SecretBinary) > 0:
		payload = string(output.SecretBinary)
	default:
		return "", fmt.Errorf("secret %s has no payload", secretID)
	}

	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err == nil {
		value, ok := kv["JWT_SECRET"].(string)
		if !ok {
			return "", fmt.Errorf("secret %s has no JWT_SECRET field", secretID)
		}
		payload = value
	}

	log.WithField("secret_id", secretID).Info("JWT signing key loaded from AWS Secrets Manager")
	return checkJWTSecret(payload)
}

func checkJWTSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET or JWT_SECRET_ARN is required")
	}
	if len(secret) < minJWTSecretLength {
		return "", fmt.Errorf("JWT secret must be at least %d bytes", minJWTSecretLength)
	}
	return secret, nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if region != "" {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx)
}
