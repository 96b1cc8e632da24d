package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

const hexDigits = "0123456789abcdef"

// hex8 formats a byte as two lowercase hex digits
func hex8(v uint8) string {
	return string([]byte{hexDigits[v>>4], hexDigits[v&0x0F]})
}

// hexBytes formats a byte slice as "[aa bb cc]"
func hexBytes(p []byte) string {
	buf := make([]byte, 0, 2+3*len(p))
	buf = append(buf, '[')
	for i, v := range p {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, hexDigits[v>>4], hexDigits[v&0x0F])
	}
	buf = append(buf, ']')
	return string(buf)
}
