package internal_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/softeno/permission-template/internal"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Database: internal.DatabaseConfig{Source: "postgres://localhost/permissions"},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	It("should accept defaults with a database source", func() {
		cfg := validConfig()
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.External.Timeout).To(Equal(time.Second))
		Expect(cfg.Security.RequiredRole).To(Equal("ROLE_ADMIN"))
	})

	It("should require a database source", func() {
		cfg := validConfig()
		cfg.Database.Source = ""
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("Source")))
	})

	It("should reject more idle than open connections", func() {
		cfg := validConfig()
		cfg.Database.MaxIdleConns = 20
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("max_idle_conns")))
	})

	It("should reject short HMAC secrets", func() {
		cfg := validConfig()
		cfg.Security = internal.SecurityConfig{Enabled: true, JWTSecret: "short", RequiredRole: "ROLE_ADMIN"}
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("at least 32")))
	})

	It("should reject an undecodable public key", func() {
		cfg := validConfig()
		cfg.Security = internal.SecurityConfig{Enabled: true, JWTPublicKey: "not-base64!", RequiredRole: "ROLE_ADMIN"}
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("invalid JWT public key")))
	})

	It("should require brokers when kafka is enabled", func() {
		cfg := validConfig()
		cfg.Kafka = internal.KafkaConfig{Enabled: true, GroupID: "g", TxTopic: "tx"}
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("Brokers")))
	})

	It("should split allowed origins", func() {
		server := internal.ServerConfig{AllowedOrigins: "https://a.example.com, https://b.example.com,"}
		Expect(server.Origins()).To(Equal([]string{"https://a.example.com", "https://b.example.com"}))
	})

	It("should load from the environment", func() {
		GinkgoT().Setenv("DATABASE_SOURCE", "postgres://env/permissions")
		GinkgoT().Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
		GinkgoT().Setenv("EXTERNAL_FAILURE_THRESHOLD", "3")
		GinkgoT().Setenv("SECURITY_ENABLED", "false")

		cfg := internal.LoadConfigFromEnv()
		Expect(cfg.Database.Source).To(Equal("postgres://env/permissions"))
		Expect(cfg.Kafka.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
		Expect(cfg.External.FailureThreshold).To(Equal(uint32(3)))
		Expect(cfg.Validate()).To(Succeed())
	})
})
