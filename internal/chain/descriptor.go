package chain

// Descriptor carries the display metadata for a category. Owned by the
// presentation boundary; the reconstructor only emits semantic tags.
type Descriptor struct {
	Icon        string `json:"icon"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var descriptors = map[Category]Descriptor{
	CategoryConversation: {Icon: "phone", Label: "Conversation", Description: "Appel décroché, échange réel"},
	CategoryRinging:      {Icon: "phone-incoming", Label: "Sonnerie", Description: "Poste sonné sans réponse"},
	CategoryRouting:      {Icon: "git-branch", Label: "Routage", Description: "Redirection système interne"},
	CategoryQueue:        {Icon: "clock", Label: "File d'attente", Description: "Passage en file d'attente"},
	CategoryBridge:       {Icon: "link", Label: "Pont", Description: "Segment de pont inter-sites"},
	CategoryIVR:          {Icon: "menu", Label: "SVI", Description: "Interaction avec le serveur vocal"},
	CategoryVoicemail:    {Icon: "voicemail", Label: "Messagerie", Description: "Renvoi vers la messagerie vocale"},
	CategoryTransfer:     {Icon: "arrow-right", Label: "Transfert", Description: "Transfert vers une autre destination"},
	CategoryMissed:       {Icon: "phone-missed", Label: "Manqué", Description: "Appel abandonné, occupé ou rejeté"},
	CategoryUnknown:      {Icon: "help-circle", Label: "Inconnu", Description: "Segment non classé"},
}

// Describe returns the display descriptor for a category, falling back to
// the unknown descriptor for unrecognized tags.
func Describe(c Category) Descriptor {
	if d, ok := descriptors[c]; ok {
		return d
	}
	return descriptors[CategoryUnknown]
}
