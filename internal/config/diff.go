package config

import (
	"reflect"
	"sort"
	"strings"

	logx "braind/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Broker credentials embedded in the URL are
// never logged.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telemetry_enabled", newCfg.Logging.Telemetry.Enabled),
		)
	}

	if oldCfg.Runtime != newCfg.Runtime {
		changed = append(changed, "runtime")
		attrs = append(attrs,
			logx.String("runtime.step_interval", strings.TrimSpace(newCfg.Runtime.StepInterval)))
	}

	if oldCfg.Field != newCfg.Field {
		changed = append(changed, "field")
		attrs = append(attrs,
			logx.String("field.source", newCfg.Field.Source),
			logx.String("field.poll_interval", strings.TrimSpace(newCfg.Field.PollInterval)))
	}

	oldFL, newFL := derefFieldLink(oldCfg.FieldLink), derefFieldLink(newCfg.FieldLink)
	if oldFL != newFL {
		changed = append(changed, "field_link")
		attrs = append(attrs,
			logx.Bool("field_link.enabled", newFL.Enabled),
			logx.Bool("field_link.broker_set", strings.TrimSpace(newFL.BrokerURL) != ""),
			logx.String("field_link.topic_prefix", newFL.TopicPrefix),
			logx.Int("field_link.rate_per_sec", newFL.RatePerSec),
		)
	}

	oldPr, newPr := derefPractice(oldCfg.Practice), derefPractice(newCfg.Practice)
	if !reflect.DeepEqual(oldPr, newPr) {
		changed = append(changed, "practice")
		attrs = append(attrs,
			logx.Bool("practice.enabled", newPr.Enabled),
			logx.String("practice.schedule", strings.TrimSpace(newPr.Schedule)),
			logx.String("practice.timezone", strings.TrimSpace(newPr.Timezone)),
			logx.Int("practice.segments", len(newPr.Script)),
		)
	}

	oldSt, newSt := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oldSt != newSt {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newSt.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newSt.Path) != ""),
			logx.Int("storage.retain_days", newSt.RetainDays),
		)
	}

	oldDbg, newDbg := derefDebug(oldCfg.Debug), derefDebug(newCfg.Debug)
	if oldDbg != newDbg {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newDbg.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newDbg.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(newDbg.Token) != ""),
			logx.Bool("debug.allow_insecure", newDbg.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefFieldLink(c *FieldLinkConfig) FieldLinkConfig {
	if c == nil {
		return FieldLinkConfig{}
	}
	return *c
}

func derefPractice(c *PracticeConfig) PracticeConfig {
	if c == nil {
		return PracticeConfig{}
	}
	return *c
}

func derefStorage(c *StorageConfig) StorageConfig {
	if c == nil {
		return StorageConfig{}
	}
	return *c
}

func derefDebug(c *DebugConfig) DebugConfig {
	if c == nil {
		return DebugConfig{}
	}
	return *c
}
