package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/config"
)

func writeConfig(dir, data string) {
	Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(data), 0o600)).To(Succeed())
}

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads every section", func() {
			writeConfig(tmpDir, `version = 0

[storage]
backend = "postgres"
sqlite_path = "/tmp/dragon.db"
postgres_dsn = "postgres://localhost/dragon"

[oracle]
provider = "anthropic"
model = "claude-haiku-4-5-20251001"
base_url = "http://localhost:9999"
api_key = "sk-test"
timeout = "30s"

[compaction]
merge_factor = 4
detail_window = 5
concurrency = 8
window_cache_size = 64

[api]
listen = ":9091"

[events]
brokers = "k1:9092,k2:9092"
topic = "novel.events"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage).To(Equal(config.StorageConfig{
				Backend:     "postgres",
				SQLitePath:  "/tmp/dragon.db",
				PostgresDSN: "postgres://localhost/dragon",
			}))
			Expect(cfg.Oracle).To(Equal(config.OracleConfig{
				Provider: "anthropic",
				Model:    "claude-haiku-4-5-20251001",
				BaseURL:  "http://localhost:9999",
				APIKey:   "sk-test",
				Timeout:  "30s",
			}))
			Expect(cfg.Compaction.MergeFactor).To(Equal(uint(4)))
			Expect(cfg.Compaction.Detail()).To(Equal(uint(5)))
			Expect(cfg.Compaction.Concurrency).To(Equal(uint(8)))
			Expect(cfg.Compaction.WindowCacheSize).To(Equal(uint(64)))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Events.BrokerList()).To(Equal([]string{"k1:9092", "k2:9092"}))
			Expect(cfg.Events.Topic).To(Equal("novel.events"))
		})

		It("keeps an explicit zero detail window", func() {
			writeConfig(tmpDir, "[compaction]\ndetail_window = 0\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Compaction.DetailWindow).NotTo(BeNil())
			Expect(cfg.Compaction.Detail()).To(BeZero())
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(tmpDir, "[oracle]\nprovider = \"openai\"\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Oracle.Provider).To(Equal("openai"))
			Expect(cfg.Oracle.Timeout).To(Equal(defaults.Oracle.Timeout))
			Expect(cfg.Storage.Backend).To(Equal(defaults.Storage.Backend))
			Expect(cfg.Compaction.MergeFactor).To(Equal(defaults.Compaction.MergeFactor))
			Expect(cfg.Compaction.Detail()).To(Equal(uint(3)))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Events.Topic).To(Equal(defaults.Events.Topic))
		})

		It("loads heuristic overrides", func() {
			writeConfig(tmpDir, `[heuristics]
characters = ["甲", "乙"]

[[heuristics.anchors]]
keyword = "海港"
label = "海港篇章"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			h := cfg.ResolvedHeuristics()
			Expect(h.Characters).To(Equal([]string{"甲", "乙"}))
			Expect(h.Anchors).To(Equal([]compaction.Anchor{{Keyword: "海港", Label: "海港篇章"}}))
			Expect(h.Themes).To(Equal(compaction.DefaultHeuristics().Themes))
		})

		It("returns error for malformed TOML", func() {
			writeConfig(tmpDir, "this is not [valid toml")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			writeConfig(tmpDir, "version = 999\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 999")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Oracle.Provider = "anthropic"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`provider = "anthropic"`))

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("round-trips every field", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.Backend = "postgres"
			cfg.Storage.PostgresDSN = "postgres://db/dragon"
			cfg.Oracle.Model = "llama3.2"
			cfg.Compaction.MergeFactor = 5
			zero := uint(0)
			cfg.Compaction.DetailWindow = &zero
			cfg.Events.Brokers = "localhost:9092"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("oracle.model", "gpt-4o-mini")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Oracle.Model).To(Equal("gpt-4o-mini"))
		})

		It("sets a uint config key", func() {
			Expect(c.SetConfigValue("compaction.merge_factor", "4")).To(Succeed())

			value, err := c.GetConfigValue("compaction.merge_factor")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("4"))
		})

		It("accepts a zero detail window", func() {
			Expect(c.SetConfigValue("compaction.detail_window", "0")).To(Succeed())

			value, err := c.GetConfigValue("compaction.detail_window")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("0"))
		})

		It("rejects a merge factor below two", func() {
			err := c.SetConfigValue("compaction.merge_factor", "1")
			Expect(err).To(MatchError(ContainSubstring("must be at least 2")))
		})

		It("rejects a non-numeric uint", func() {
			err := c.SetConfigValue("compaction.concurrency", "many")
			Expect(err).To(MatchError(ContainSubstring("invalid value for compaction.concurrency")))
		})

		It("rejects an unknown provider", func() {
			err := c.SetConfigValue("oracle.provider", "gemini")
			Expect(err).To(MatchError(ContainSubstring("invalid value for oracle.provider")))
		})

		It("rejects an unknown storage backend", func() {
			Expect(c.SetConfigValue("storage.backend", "mysql")).To(HaveOccurred())
		})

		It("rejects a malformed timeout", func() {
			Expect(c.SetConfigValue("oracle.timeout", "soon")).To(HaveOccurred())
			Expect(c.SetConfigValue("oracle.timeout", "-1s")).To(HaveOccurred())
			Expect(c.SetConfigValue("oracle.timeout", "45s")).To(Succeed())
		})

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("nonexistent.key", "value")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("oracle.provider", "openai")).To(Succeed())
			Expect(c.SetConfigValue("api.listen", ":9000")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Oracle.Provider).To(Equal("openai"))
			Expect(cfg.API.Listen).To(Equal(":9000"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("oracle.provider")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("ollama"))

			value, err = c.GetConfigValue("compaction.detail_window")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("3"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			value, err := c.GetConfigValue("storage.postgres_dsn")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("proxy.upstream")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(HaveLen(15))
		Expect(keys[0]).To(Equal("storage.backend"))
		Expect(keys[len(keys)-1]).To(Equal("events.topic"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
		}
	})

	It("rejects unknown keys", func() {
		Expect(config.IsValidConfigKey("")).To(BeFalse())
		Expect(config.IsValidConfigKey("merge_factor")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("points the oracle at the named provider", func() {
		cfg, err := config.PresetConfig("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Oracle.Provider).To(Equal("openai"))
		Expect(cfg.Oracle.Model).To(Equal("gpt-4o-mini"))
		Expect(cfg.Compaction.MergeFactor).To(Equal(uint(3)))
	})

	It("is case-insensitive", func() {
		cfg, err := config.PresetConfig("Anthropic")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Oracle.Provider).To(Equal("anthropic"))
	})

	It("supports running without an oracle", func() {
		cfg, err := config.PresetConfig("none")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Oracle.Provider).To(Equal("none"))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("gemini")
		Expect(err).To(MatchError(ContainSubstring("unknown preset")))
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns empty config for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Oracle.Provider).To(BeEmpty())
		Expect(cfg.Compaction.DetailWindow).To(BeNil())
	})

	It("returns error for invalid TOML", func() {
		_, err := config.ParseConfigTOML([]byte("[[["))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "viper-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(v.GetString("oracle.provider")).To(Equal("ollama"))
		Expect(v.GetUint("compaction.merge_factor")).To(Equal(uint(3)))
		Expect(v.GetUint("compaction.detail_window")).To(Equal(uint(3)))
		Expect(v.GetString("api.listen")).To(Equal(":8081"))
	})

	It("reads config file values over defaults", func() {
		writeConfig(tmpDir, "[compaction]\nmerge_factor = 5\n")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetUint("compaction.merge_factor")).To(Equal(uint(5)))
		Expect(v.GetUint("compaction.concurrency")).To(Equal(uint(1)))
	})

	It("env vars take precedence over config file values", func() {
		writeConfig(tmpDir, "[oracle]\nprovider = \"anthropic\"\n")
		GinkgoT().Setenv("DRAGON_ORACLE_PROVIDER", "openai")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("oracle.provider")).To(Equal("openai"))
	})
})

var _ = Describe("Flag registry", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "bindflag-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })
	})

	It("binds a set flag over the config file", func() {
		writeConfig(tmpDir, "[api]\nlisten = \":5555\"\n")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListen})
		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		writeConfig(tmpDir, "[compaction]\nmerge_factor = 6\n")
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var factor uint
		config.AddUintFlag(cmd, config.Flags, config.FlagMergeFactor, &factor)

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagMergeFactor})
		Expect(v.GetUint("compaction.merge_factor")).To(Equal(uint(6)))
	})

	It("pulls name, shorthand, default, and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var factor uint
		config.AddUintFlag(cmd, config.Flags, config.FlagMergeFactor, &factor)

		f := cmd.Flags().Lookup("merge-factor")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("f"))
		Expect(f.DefValue).To(Equal("3"))
		Expect(f.Usage).To(Equal(config.Flags[config.FlagMergeFactor].Description))
	})

	It("skips unknown registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var s string
		config.AddStringFlag(cmd, config.Flags, "nonexistent", &s)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(cmd.Flags().HasFlags()).To(BeFalse())
		Expect(v.GetString("api.listen")).To(Equal(":8081"))
	})
})
