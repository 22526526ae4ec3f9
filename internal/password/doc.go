// Package password hashes the development server's account passwords with
// Argon2id and encodes them in PHC form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
package password
