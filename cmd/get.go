package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/droprescue/droprescue/pkg/client"
)

func NewGetCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:   "get <slug>",
		Short: "Download a single drop by slug",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			var comps []string
			if len(args) == 0 {
				comps = cobra.AppendActiveHelp(comps, "You must specify the slug of the drop to download")
			} else {
				comps = cobra.AppendActiveHelp(comps, "This command does not take any more arguments")
			}
			return comps, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			l := zap.L()

			c := client.New(l,
				client.WithHTTPClient(&http.Client{Timeout: timeoutFlag(v)}),
				client.WithBaseURL(baseURLFlag(v)),
				client.WithShareURL(shareURLFlag(v)),
				newCredentialsOption(v),
			)

			d, err := c.Drop(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path := filepath.Join(dirFlag(v), filepath.FromSlash(d.StoragePath()))
			if err := d.Save(cmd.Context(), path); err != nil {
				return err
			}

			fmt.Println(path)
			return nil
		},
	}

	flags := cmd.Flags()
	addDirFlag(flags, v)
	addBaseURLFlag(flags, v)
	addShareURLFlag(flags, v)
	addEmailFlag(flags, v)
	addPasswordFlag(flags, v)
	addTimeoutFlag(flags, v)

	return cmd
}
