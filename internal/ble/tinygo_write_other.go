//go:build darwin || windows

package ble

// Write uses the acknowledged GATT write, unlike WriteWithoutResponse.
func (c *tinyGoCharacteristic) Write(data []byte) error {
	_, err := c.char.Write(data)
	return err
}
