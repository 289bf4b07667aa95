package wiki

import (
	"errors"
	"os"
	"path/filepath"
)

// DefaultPage is the wiki page the engine reads its entries from.
const DefaultPage = "stickymgr/config"

// Template is the commented starter configuration written on first run.
const Template = `# Sticky Manager configuration file
# This file is used to configure sticky posts for your subreddit.
# Each configuration entry defines a sticky post with its own settings, using YAML.

# Example:

# name: world-megathread
# enabled: true
# title: World Megathread for {{date dd/MM/yyyy}}
# frequency: daily
# postTime: 01:00
# stickyPosition: 1
# maxComments: 200
# body: |
#     Welcome to the UKPol World Megathread
#
#     This is a place to discuss all things related to the world.
# endNote: |
#     The megathread has ended. Please continue the discussion in the latest thread.
# lockOnRefresh: true

# frequency options: daily, mondays, tuesdays, wednesdays, thursdays, fridays, saturdays, sundays
# postTime format: HH:mm (24-hour format). This is in UTC.
# stickyPosition: 1 or 2. Omit if you don't want to set a sticky position.
# endNote is optional and will create a sticky comment when the post is refreshed.
# lockOnRefresh is optional and will lock the post when it is refreshed.

# Just like Automoderator, you can create multiple sticky posts by adding more entries, separated with ---.
`

// EnsureFile writes the starter template to path when the file does not
// exist yet. An existing file, even an empty one, is left alone.
func EnsureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(Template), 0o644)
}
