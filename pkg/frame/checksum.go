package frame

import "hash/crc32"

// TrailerSize - длина контрольной суммы в конце каждого кадра.
const TrailerSize = 8

// trailerBase - первая буква алфавита контрольной суммы. Прошивка измерителя
// кодирует полубайты буквами 'a'..'p', а не шестнадцатеричными цифрами.
const trailerBase = 'a'

// Checksum вычисляет трейлер кадра: CRC-32 полезной нагрузки, восемь полубайт
// от старшего к младшему, каждый полубайт n записывается как 'a'+n.
func Checksum(payload []byte) [TrailerSize]byte {
	sum := crc32.ChecksumIEEE(payload)
	var trailer [TrailerSize]byte
	for i := 0; i < TrailerSize; i++ {
		shift := uint(28 - 4*i)
		trailer[i] = trailerBase + byte(sum>>shift&0xf)
	}
	return trailer
}

// Verify пересчитывает трейлер для payload и побайтно сравнивает его с полученным.
func Verify(payload, trailer []byte) bool {
	if len(trailer) != TrailerSize {
		return false
	}
	want := Checksum(payload)
	for i := range want {
		if trailer[i] != want[i] {
			return false
		}
	}
	return true
}
