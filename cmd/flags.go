package cmd

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func logLevelFlag(v *viper.Viper) string {
	return v.GetString("log.level")
}

func addLogLevelFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-level", "info", "log level")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

func logFormatFlag(v *viper.Viper) string {
	return v.GetString("log.format")
}

func addLogFormatFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("log-format", "json", "log format")
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindEnv("log.format", "LOG_FORMAT")
}

func dirFlag(v *viper.Viper) string {
	return v.GetString("dir")
}

func addDirFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("dir", ".", "Directory to export drops into")
	_ = v.BindPFlag("dir", flags.Lookup("dir"))
	_ = v.BindEnv("dir", "DROPRESCUE_DIR")
}

func baseURLFlag(v *viper.Viper) string {
	return v.GetString("base_url")
}

func addBaseURLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("base-url", "https://my.cl.ly", "Base URL of the items API")
	_ = v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = v.BindEnv("base_url", "DROPRESCUE_BASE_URL")
}

func shareURLFlag(v *viper.Viper) string {
	return v.GetString("share_url")
}

func addShareURLFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("share-url", "https://cl.ly", "Base URL drop slugs resolve against")
	_ = v.BindPFlag("share_url", flags.Lookup("share-url"))
	_ = v.BindEnv("share_url", "DROPRESCUE_SHARE_URL")
}

func emailFlag(v *viper.Viper) string {
	return v.GetString("email")
}

func addEmailFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("email", "", "Account email used for digest authentication")
	_ = v.BindPFlag("email", flags.Lookup("email"))
	_ = v.BindEnv("email", "CLOUDAPP_USER")
}

func passwordFlag(v *viper.Viper) string {
	return v.GetString("password")
}

func addPasswordFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("password", "", "Account password used for digest authentication")
	_ = v.BindPFlag("password", flags.Lookup("password"))
	_ = v.BindEnv("password", "CLOUDAPP_PASSWORD")
}

func timeoutFlag(v *viper.Viper) time.Duration {
	return v.GetDuration("timeout")
}

func addTimeoutFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Duration("timeout", 0, "HTTP timeout per request, 0 for no timeout")
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = v.BindEnv("timeout", "DROPRESCUE_TIMEOUT")
}

func progressFlag(v *viper.Viper) bool {
	return v.GetBool("progress")
}

func addProgressFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.Bool("progress", true, "Render a progress bar on stderr")
	_ = v.BindPFlag("progress", flags.Lookup("progress"))
	_ = v.BindEnv("progress", "DROPRESCUE_PROGRESS")
}

func mirrorBucketFlag(v *viper.Viper) string {
	return v.GetString("mirror.bucket")
}

func addMirrorBucketFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("mirror-bucket", "", "Optional bucket URL (gs://, s3://, azblob://, file://) to mirror metadata snapshots into")
	_ = v.BindPFlag("mirror.bucket", flags.Lookup("mirror-bucket"))
	_ = v.BindEnv("mirror.bucket", "DROPRESCUE_MIRROR_BUCKET")
}

func mirrorPrefixFlag(v *viper.Viper) string {
	return v.GetString("mirror.prefix")
}

func addMirrorPrefixFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("mirror-prefix", "", "Key prefix inside the mirror bucket")
	_ = v.BindPFlag("mirror.prefix", flags.Lookup("mirror-prefix"))
	_ = v.BindEnv("mirror.prefix", "DROPRESCUE_MIRROR_PREFIX")
}
