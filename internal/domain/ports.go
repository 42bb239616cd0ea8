package domain

type RegistrationCache interface {
	Contains(domain, token string) bool
	Remember(domain, token string)
}

type Recorder interface {
	WriteRecord(r Record) error
}

type Emitter interface {
	Emit(event string, payload any)
}
