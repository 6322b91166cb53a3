package config

import (
	"fmt"
	"os"
)

const defaultConfigTemplate = `# Bakery configuration.
# Environment variables override everything here; see the README for the list.

admin:
  port: 8087
  # token: change-me        # BAKERY_ADMIN_TOKEN; empty disables auth

build:
  command: bakery-build
  output_dir: ./build       # BUILD_DIR
  skip_static: false        # BAKERY_SKIP_STATIC

publish:
  # bucket: my-site-bucket  # BAKERY_AWS_BUCKET_NAME / AWS_BUCKET_NAME
  # prefix: site/
  # region: eu-north-1
  delete_stale: false

# post_publish:             # BAKERY_POST_PUBLISH_COMMAND
#   command: purge_cache
#   title: Purge CDN

schedule:
  # interval: 1h            # empty disables scheduled runs
  publish: false

history:
  path: bakery.db

events:
  # nats_url: nats://localhost:4222
  subject: bakery.runs

monitoring:
  metrics: true
`

// Init writes a commented starter configuration file.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
