// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import "fmt"

func wrapf(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}
