package mail

// BuildMIMEForTest exposes buildMIME.
var BuildMIMEForTest = buildMIME
