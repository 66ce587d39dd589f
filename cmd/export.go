package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/droprescue/droprescue/pkg/client"
	"github.com/droprescue/droprescue/pkg/export"
	"github.com/droprescue/droprescue/pkg/mirror"
)

func NewExportCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download every drop of the account to local disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			l := zap.L()

			c := client.New(l,
				client.WithHTTPClient(&http.Client{Timeout: timeoutFlag(v)}),
				client.WithBaseURL(baseURLFlag(v)),
				client.WithShareURL(shareURLFlag(v)),
				newCredentialsOption(v),
			)

			opts := []export.Option{
				export.WithDir(dirFlag(v)),
				export.WithProgress(progressFlag(v)),
			}
			if bucket := mirrorBucketFlag(v); bucket != "" {
				storage, err := mirror.NewBlobStorage(cmd.Context(), bucket, mirrorPrefixFlag(v))
				if err != nil {
					return fmt.Errorf("failed to open mirror bucket: %w", err)
				}
				defer func() {
					_ = storage.Close()
				}()
				opts = append(opts, export.WithMirror(storage))
			}

			return export.New(l, c, opts...).Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	addDirFlag(flags, v)
	addBaseURLFlag(flags, v)
	addShareURLFlag(flags, v)
	addEmailFlag(flags, v)
	addPasswordFlag(flags, v)
	addTimeoutFlag(flags, v)
	addProgressFlag(flags, v)
	addMirrorBucketFlag(flags, v)
	addMirrorPrefixFlag(flags, v)

	return cmd
}

// newCredentialsOption prefers explicit flag or env credentials and
// falls back to the facade's ambient lookup.
func newCredentialsOption(v *viper.Viper) client.Option {
	if email := emailFlag(v); email != "" {
		return client.WithCredentials(email, passwordFlag(v))
	}
	return client.WithCredentialsFromEnv()
}
