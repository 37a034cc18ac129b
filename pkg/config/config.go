/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

func SetValue(key, value string) {
	viper.Set(key, value)
}

func LoadConfig(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	applyEnvOverrides()
	return nil
}

// applyEnvOverrides maps startup environment variables onto config keys.
// Overrides are read once; later environment changes are not observed.
func applyEnvOverrides() {
	overrides := map[string]string{
		envCorsOrigins:    corsOrigins,
		envSmtpHost:       smtpHost,
		envSmtpPort:       smtpPort,
		envSmtpUser:       smtpUser,
		envSmtpPassword:   smtpPassword,
		envSmtpSender:     smtpSender,
		envMailApiKey:     mailApiKey,
		envMailApiSender:  mailApiSender,
		envProviderApiKey: providerApiKey,
	}
	for env, key := range overrides {
		if val := os.Getenv(env); val != "" {
			viper.Set(key, val)
		}
	}
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getStrings(key string) []string {
	val := viper.GetString(key)
	return removeBlank(strings.Split(val, ","))
}

func removeBlank(slice []string) []string {
	var result []string
	for _, val := range slice {
		if trim := strings.TrimSpace(val); trim != "" {
			result = append(result, trim)
		}
	}
	return result
}

func getFromFile(configPath, item string) string {
	path := getString(configPath, "")
	data, err := os.ReadFile(filepath.Join(path, item))
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\r\n")
}

func GetServerPort() int {
	return getInt(serverPort, 0)
}

func GetCorsOrigins() []string {
	return getStrings(corsOrigins)
}

func GetUserTokenExpire() int {
	return getInt(userTokenExpire, 3600*24)
}

func IsUserTokenRequired() bool {
	return getBool(userTokenRequired, true)
}

func GetDBHost() string {
	if host := getString(dbHost, ""); host != "" {
		return host
	}
	return getFromFile(dbSecretPath, "host")
}

func GetDBPort() int {
	return getInt(dbPort, 5432)
}

func GetDBName() string {
	if name := getString(dbName, ""); name != "" {
		return name
	}
	return getFromFile(dbSecretPath, "dbname")
}

func GetDBUser() string {
	if user := getString(dbUser, ""); user != "" {
		return user
	}
	return getFromFile(dbSecretPath, "user")
}

func GetDBPassword() string {
	if passwd := getString(dbPassword, ""); passwd != "" {
		return passwd
	}
	return getFromFile(dbSecretPath, "password")
}

func GetDBSslMode() string {
	return getString(dbSslMode, "require")
}

func GetDBMaxOpenConns() int {
	return getInt(dbMaxOpenConns, 100)
}

func GetDBMaxIdleConns() int {
	return getInt(dbMaxIdleConns, 10)
}

func GetDBMaxLifetimeSecond() int {
	return getInt(dbMaxLifetime, 600)
}

func GetDBMaxIdleTimeSecond() int {
	return getInt(dbMaxIdleTimeSecond, 60)
}

func GetDBRequestTimeoutSecond() int {
	return getInt(dbRequestTimeoutSecond, 20)
}

func GetServicesDir() string {
	return getString(servicesDir, "services")
}

func GetRunnerStopGraceSecond() int {
	return getInt(runnerStopGraceSecond, 10)
}

func GetRunnerFlushSecond() int {
	return getInt(runnerFlushSecond, 2)
}

func GetSchedulerTickSecond() int {
	return getInt(schedulerTickSecond, 30)
}

func GetCostRefreshHour() int {
	return getInt(costRefreshHour, 6)
}

func GetHealthIntervalSecond() int {
	return getInt(healthIntervalSecond, 300)
}

func GetHealthTimeoutSecond() int {
	return getInt(healthTimeoutSecond, 15)
}

func GetHealthTargets() []string {
	return getStrings(healthTargets)
}

func GetDriftIntervalSecond() int {
	return getInt(driftIntervalSecond, 3600)
}

func GetSnapshotPollSecond() int {
	return getInt(snapshotPollSecond, 60)
}

func GetProviderApiKey() string {
	return getString(providerApiKey, "")
}

func GetProviderEndpoint() string {
	return getString(providerEndpoint, "")
}

func GetProviderTimeoutSecond() int {
	return getInt(providerTimeoutSecond, 15)
}

func GetMailBackend() string {
	return getString(mailBackend, "")
}

func GetSmtpHost() string {
	return getString(smtpHost, "")
}

func GetSmtpPort() int {
	return getInt(smtpPort, 587)
}

func GetSmtpUser() string {
	return getString(smtpUser, "")
}

func GetSmtpPassword() string {
	return getString(smtpPassword, "")
}

func GetSmtpSender() string {
	return getString(smtpSender, "")
}

func IsSmtpStartTLS() bool {
	return getBool(smtpStartTLS, true)
}

func GetMailApiEndpoint() string {
	return getString(mailApiEndpoint, "")
}

func GetMailApiKey() string {
	return getString(mailApiKey, "")
}

func GetMailApiSender() string {
	return getString(mailApiSender, "")
}
